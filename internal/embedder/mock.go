package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
)

// MockEmbedder is a deterministic Embedder for testing. The same text always
// produces the same embedding, so similarity assertions are stable.
type MockEmbedder struct {
	mu         sync.Mutex
	dimensions int
	embedErr   error
	calls      int
}

// NewMockEmbedder creates a mock embedder producing vectors of the given
// dimensionality.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	return &MockEmbedder{dimensions: dimensions}
}

// SetError makes subsequent Embed/EmbedBatch calls return err (nil clears).
func (m *MockEmbedder) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
}

// Calls returns how many embedding calls were made.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed generates a deterministic unit-length embedding from a SHA256 hash of
// the text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.generate(text), nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = m.generate(text)
	}
	return out, nil
}

// Dimensions returns the configured dimensionality.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// Model returns the mock model name.
func (m *MockEmbedder) Model() string {
	return "mock-embedder"
}

// generate hashes the text to seed a PRNG, then normalizes the vector so
// cosine similarity of identical texts is exactly 1.
func (m *MockEmbedder) generate(text string) []float64 {
	hash := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(hash[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, m.dimensions)
	var norm float64
	for i := range vec {
		vec[i] = rng.Float64()*2 - 1
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
