package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// MemoryStore is an in-memory Store implementation. Suitable for tests and
// ephemeral runs; contents are lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	dims     int
	sections map[string]ParentSection
	chunks   []Chunk
	closed   bool
}

// NewMemoryStore creates an empty in-memory store enforcing the given
// embedding dimensionality (0 disables the check).
func NewMemoryStore(dims int) *MemoryStore {
	return &MemoryStore{
		dims:     dims,
		sections: make(map[string]ParentSection),
	}
}

// AppendSection stores a section and its chunks under a single write lock, so
// readers observe either none or all of the new chunks.
func (s *MemoryStore) AppendSection(ctx context.Context, section ParentSection, chunks []Chunk) error {
	if err := section.Validate(); err != nil {
		return err
	}
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return err
		}
		if chunks[i].SectionID != section.ID {
			return types.NewError(types.STORE_FAILED,
				fmt.Sprintf("chunk %s references section %s, expected %s",
					chunks[i].ID, chunks[i].SectionID, section.ID))
		}
		if s.dims > 0 && len(chunks[i].Embedding) != s.dims {
			return types.NewError(types.STORE_FAILED,
				fmt.Sprintf("embedding dimensions mismatch: expected %d, got %d",
					s.dims, len(chunks[i].Embedding)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewError(types.STORE_UNAVAILABLE, "retrieval store is closed")
	}

	s.sections[section.ID] = section
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// RankChunks scores every chunk against the query embedding, sorted by
// descending similarity.
func (s *MemoryStore) RankChunks(ctx context.Context, embedding []float64) ([]ChunkMatch, error) {
	if len(embedding) == 0 {
		return nil, types.NewError(types.RETRIEVAL_FAILED, "query embedding cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(types.STORE_UNAVAILABLE, "retrieval store is closed")
	}

	matches := make([]ChunkMatch, 0, len(s.chunks))
	for i := range s.chunks {
		matches = append(matches, ChunkMatch{
			ChunkID:    s.chunks[i].ID,
			SectionID:  s.chunks[i].SectionID,
			Similarity: cosineSimilarity(embedding, s.chunks[i].Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches, nil
}

// GetSection retrieves a section by ID.
func (s *MemoryStore) GetSection(ctx context.Context, id string) (*ParentSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(types.STORE_UNAVAILABLE, "retrieval store is closed")
	}

	section, ok := s.sections[id]
	if !ok {
		return nil, types.NewError(types.SECTION_NOT_FOUND,
			fmt.Sprintf("parent section not found: %s", id))
	}
	return &section, nil
}

// SectionCount returns the number of stored sections.
func (s *MemoryStore) SectionCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sections), nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
