package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Zhanna110/worldsmith-v3/internal/embedder"
	"github.com/Zhanna110/worldsmith-v3/internal/retrieval"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Ingester splits markdown documents into parent sections and embedded
// chunks, then appends them to the retrieval store.
type Ingester struct {
	store    retrieval.Store
	embedder embedder.Embedder
	logger   *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// New creates an Ingester writing to the given store.
func New(store retrieval.Store, emb embedder.Embedder, opts ...Option) *Ingester {
	ing := &Ingester{
		store:    store,
		embedder: emb,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Result summarizes what one ingestion produced.
type Result struct {
	Sections int
	Chunks   int
}

// IngestDocument splits content into sections, embeds each section's chunks,
// and appends them. Frontmatter, if present, is parsed into metadata carried
// by every section of the document and stripped from the indexed text.
func (i *Ingester) IngestDocument(ctx context.Context, sourceFile, content string) (*Result, error) {
	body, metadata := splitFrontmatter(content)

	sections := splitSections(sourceFile, body, metadata)

	result := &Result{}
	for _, section := range sections {
		chunks := splitChunks(section)
		if len(chunks) == 0 {
			continue
		}

		texts := make([]string, len(chunks))
		for j := range chunks {
			texts[j] = chunks[j].Text
		}
		embeddings, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, types.WrapRetryableError(types.EMBED_FAILED, "failed to embed chunks", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, types.NewError(types.EMBED_FAILED, "embedder returned wrong number of vectors")
		}
		for j := range chunks {
			chunks[j].Embedding = embeddings[j]
		}

		if err := i.store.AppendSection(ctx, section, chunks); err != nil {
			return nil, err
		}
		result.Sections++
		result.Chunks += len(chunks)
	}

	i.logger.Info("document ingested",
		"source", sourceFile,
		"sections", result.Sections,
		"chunks", result.Chunks)

	return result, nil
}

// IngestFile reads a markdown file from disk and ingests it. The source file
// recorded on sections is the base name, matching how generated articles
// reference each other.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.STORE_FAILED, "failed to read source file", err)
	}
	return i.IngestDocument(ctx, filepath.Base(path), string(data))
}

// IngestDir walks a directory and ingests every markdown file in it.
func (i *Ingester) IngestDir(ctx context.Context, dir string) (*Result, error) {
	total := &Result{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		res, err := i.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		total.Sections += res.Sections
		total.Chunks += res.Chunks
		return nil
	})
	if err != nil {
		if _, ok := err.(*types.Error); ok {
			return nil, err
		}
		return nil, types.WrapError(types.STORE_FAILED, "failed to walk source directory", err)
	}
	return total, nil
}

// splitFrontmatter separates a leading YAML frontmatter block from the body.
// Malformed frontmatter is treated as body text.
func splitFrontmatter(content string) (body string, metadata map[string]any) {
	if !strings.HasPrefix(content, "---\n") {
		return content, nil
	}

	rest := content[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, nil
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return content, nil
	}

	body = rest[end+4:]
	body = strings.TrimPrefix(body, "\n")
	return body, meta
}
