package retrieval

import (
	"fmt"
	"time"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// ParentSection is the structural unit actually returned by retrieval: the
// smallest enclosing heading-delimited block of a source document. Many
// chunks may reference one section, never the reverse. Sections are immutable
// once ingested.
type ParentSection struct {
	ID         string         `json:"id"`
	SourceFile string         `json:"source_file"`
	Heading    string         `json:"heading,omitempty"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate ensures the section has valid fields.
func (ps *ParentSection) Validate() error {
	if ps.ID == "" {
		return types.NewError(types.STORE_FAILED, "parent section ID cannot be empty")
	}
	if ps.Text == "" {
		return types.NewError(types.STORE_FAILED, "parent section text cannot be empty")
	}
	if ps.SourceFile == "" {
		return types.NewError(types.STORE_FAILED, "parent section source file cannot be empty")
	}
	return nil
}

// Chunk is an embedded sub-span of a section used only for similarity
// ranking. A chunk never stands alone as a retrieval result.
type Chunk struct {
	ID        string    `json:"id"`
	SectionID string    `json:"section_id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// Validate ensures the chunk has valid fields.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return types.NewError(types.STORE_FAILED, "chunk ID cannot be empty")
	}
	if c.SectionID == "" {
		return types.NewError(types.STORE_FAILED, "chunk must reference a parent section")
	}
	if len(c.Embedding) == 0 {
		return types.NewError(types.STORE_FAILED, "chunk embedding cannot be empty")
	}
	return nil
}

// Query describes a hybrid retrieval request: a query vector, a strict
// similarity threshold, the number of distinct parent sections wanted, and an
// exact-match metadata filter applied to the owning section.
type Query struct {
	Embedding []float64      `json:"embedding"`
	Threshold float64        `json:"threshold"`
	Count     int            `json:"count"`
	Filter    map[string]any `json:"filter,omitempty"`
}

// Validate ensures the query has valid fields.
func (q *Query) Validate() error {
	if len(q.Embedding) == 0 {
		return types.NewError(types.RETRIEVAL_FAILED, "query embedding cannot be empty")
	}
	if q.Count <= 0 {
		return types.NewError(types.RETRIEVAL_FAILED,
			fmt.Sprintf("query count must be positive, got %d", q.Count))
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return types.NewError(types.RETRIEVAL_FAILED,
			fmt.Sprintf("query threshold must be in [0,1], got %f", q.Threshold))
	}
	return nil
}

// SectionMatch is a retrieval result: a full parent section carrying the
// similarity score of the best chunk that surfaced it.
type SectionMatch struct {
	Section    ParentSection `json:"section"`
	Similarity float64       `json:"similarity"`
}

// ChunkMatch is an internal ranking candidate produced by a Store.
type ChunkMatch struct {
	ChunkID    string  `json:"chunk_id"`
	SectionID  string  `json:"section_id"`
	Similarity float64 `json:"similarity"`
}

// matchesFilter checks metadata containment: every key in the filter must be
// present with an equal value in the section's metadata. Extra keys in the
// section are ignored. AND semantics across filter keys.
func matchesFilter(metadata map[string]any, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if metadata == nil {
		return false
	}

	for key, expected := range filter {
		actual, exists := metadata[key]
		if !exists {
			return false
		}
		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", expected) {
			return false
		}
	}
	return true
}
