package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Store persists parent sections and their chunk embeddings. Implementations
// must be thread-safe: appends are the only mutation during a run, and
// concurrent readers must observe either the pre- or post-append state, never
// a partially written section.
type Store interface {
	// AppendSection stores a section and its chunks atomically. Every chunk
	// must reference the section being appended.
	AppendSection(ctx context.Context, section ParentSection, chunks []Chunk) error

	// RankChunks scores every stored chunk against the query embedding and
	// returns all candidates sorted by descending similarity.
	RankChunks(ctx context.Context, embedding []float64) ([]ChunkMatch, error)

	// GetSection retrieves a section by ID.
	GetSection(ctx context.Context, id string) (*ParentSection, error)

	// SectionCount returns the number of stored sections.
	SectionCount(ctx context.Context) (int, error)

	// Close releases all resources held by the store.
	Close() error
}

// StoreConfig selects and configures a Store implementation at construction
// time.
type StoreConfig struct {
	// Backend selects the implementation: "sqlite" or "memory".
	Backend string `yaml:"backend" json:"backend" mapstructure:"backend"`

	// Path is the SQLite database file (sqlite backend only).
	Path string `yaml:"path" json:"path" mapstructure:"path"`

	// Dimensions is the embedding dimensionality enforced by the store.
	Dimensions int `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions"`
}

// NewStore constructs a Store from configuration. The backend choice is made
// once here; call sites depend only on the Store interface.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(SQLiteConfig{Path: cfg.Path, Dimensions: cfg.Dimensions})
	case "memory":
		return NewMemoryStore(cfg.Dimensions), nil
	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown retrieval backend: %q", cfg.Backend))
	}
}

// cosineSimilarity computes the cosine similarity between two equal-length
// vectors, clamped to [0,1]. Text embeddings rarely oppose each other, so
// negative similarities carry no ranking signal and clamp to 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
