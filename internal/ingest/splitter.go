package ingest

import (
	"strings"

	"github.com/Zhanna110/worldsmith-v3/internal/retrieval"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// minChunkLength filters out heading stubs and separator lines that would
// pollute the similarity index.
const minChunkLength = 50

// splitSections divides markdown content into heading-delimited parent
// sections. Text before the first heading becomes a preamble section with an
// empty heading. A document with no headings yields a single section.
func splitSections(sourceFile, content string, metadata map[string]any) []retrieval.ParentSection {
	lines := strings.Split(content, "\n")

	var sections []retrieval.ParentSection
	var heading string
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text == "" {
			return
		}
		sections = append(sections, retrieval.ParentSection{
			ID:         types.NewID().String(),
			SourceFile: sourceFile,
			Heading:    heading,
			Text:       text,
			Metadata:   metadata,
		})
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(line, "#"))
			buf = buf[:0]
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

// splitChunks divides a section's text into paragraph chunks for embedding.
// Paragraphs shorter than minChunkLength are merged forward into the next one
// so headings and list fragments don't become standalone chunks.
func splitChunks(section retrieval.ParentSection) []retrieval.Chunk {
	paragraphs := strings.Split(section.Text, "\n\n")

	var chunks []retrieval.Chunk
	var pending string

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if pending != "" {
			p = pending + "\n\n" + p
			pending = ""
		}
		if len(p) < minChunkLength {
			pending = p
			continue
		}
		chunks = append(chunks, retrieval.Chunk{
			ID:        types.NewID().String(),
			SectionID: section.ID,
			Text:      p,
		})
	}

	if pending != "" {
		if len(chunks) > 0 {
			chunks[len(chunks)-1].Text += "\n\n" + pending
		} else if len(pending) > 0 {
			// Short section; index it anyway so it remains findable.
			chunks = append(chunks, retrieval.Chunk{
				ID:        types.NewID().String(),
				SectionID: section.ID,
				Text:      pending,
			})
		}
	}

	return chunks
}
