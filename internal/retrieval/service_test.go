package retrieval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhanna110/worldsmith-v3/internal/embedder"
)

const testDims = 64

// seedSection appends one section with the given chunk texts, embedded by the
// deterministic mock embedder.
func seedSection(t *testing.T, store Store, emb *embedder.MockEmbedder, id, sourceFile string, metadata map[string]any, chunkTexts ...string) {
	t.Helper()

	section := ParentSection{
		ID:         id,
		SourceFile: sourceFile,
		Heading:    id,
		Text:       fmt.Sprintf("full section text of %s", id),
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}

	chunks := make([]Chunk, len(chunkTexts))
	for i, text := range chunkTexts {
		vec, err := emb.Embed(context.Background(), text)
		require.NoError(t, err)
		chunks[i] = Chunk{
			ID:        fmt.Sprintf("%s-chunk-%d", id, i),
			SectionID: id,
			Text:      text,
			Embedding: vec,
		}
	}

	require.NoError(t, store.AppendSection(context.Background(), section, chunks))
}

func embed(t *testing.T, emb *embedder.MockEmbedder, text string) []float64 {
	t.Helper()
	vec, err := emb.Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}

func TestSearchReturnsFullParentSection(t *testing.T) {
	store := NewMemoryStore(testDims)
	emb := embedder.NewMockEmbedder(testDims)
	svc := NewService(store, emb)

	seedSection(t, store, emb, "sec-1", "citadel.md", nil,
		"the citadel rises over the bay", "its walls were quarried from black basalt")

	// Query with a vector identical to one chunk's embedding at threshold 0:
	// the result must span the whole section, not just the matching chunk.
	results, err := svc.Search(context.Background(), Query{
		Embedding: embed(t, emb, "its walls were quarried from black basalt"),
		Threshold: 0,
		Count:     5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "full section text of sec-1", results[0].Section.Text)
	assert.Equal(t, "citadel.md", results[0].Section.SourceFile)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestSearchNeverDuplicatesParents(t *testing.T) {
	store := NewMemoryStore(testDims)
	emb := embedder.NewMockEmbedder(testDims)
	svc := NewService(store, emb)

	// Both chunks of sec-1 will outrank everything else for this query.
	seedSection(t, store, emb, "sec-1", "a.md", nil,
		"dragons of the northern reach", "dragons of the northern reach again")
	seedSection(t, store, emb, "sec-2", "b.md", nil,
		"trade routes of the inner sea")

	results, err := svc.Search(context.Background(), Query{
		Embedding: embed(t, emb, "dragons of the northern reach"),
		Threshold: 0,
		Count:     5,
	})
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, r := range results {
		seen[r.Section.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "section %s appeared %d times", id, n)
	}
}

func TestSearchSortedDescendingAndStrictThreshold(t *testing.T) {
	store := NewMemoryStore(testDims)
	emb := embedder.NewMockEmbedder(testDims)
	svc := NewService(store, emb)

	for i := 0; i < 6; i++ {
		seedSection(t, store, emb, fmt.Sprintf("sec-%d", i), fmt.Sprintf("f%d.md", i), nil,
			fmt.Sprintf("chunk text number %d", i))
	}

	threshold := 0.2
	results, err := svc.Search(context.Background(), Query{
		Embedding: embed(t, emb, "chunk text number 3"),
		Threshold: threshold,
		Count:     10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i, r := range results {
		assert.Greater(t, r.Similarity, threshold, "similarity must strictly exceed the threshold")
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Similarity, r.Similarity, "results must be sorted descending")
		}
	}
}

// axisVec builds a unit vector along the given axis blended toward axis 0,
// giving a predictable cosine similarity against pure axis 0.
func axisVec(weight0, weightAxis float64, axis int) []float64 {
	v := make([]float64, testDims)
	v[0] = weight0
	if axis != 0 {
		v[axis] = weightAxis
	}
	return v
}

func seedManual(t *testing.T, store Store, id, sourceFile string, metadata map[string]any, embeddings ...[]float64) {
	t.Helper()
	section := ParentSection{
		ID:         id,
		SourceFile: sourceFile,
		Text:       fmt.Sprintf("full section text of %s", id),
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	chunks := make([]Chunk, len(embeddings))
	for i, e := range embeddings {
		chunks[i] = Chunk{
			ID:        fmt.Sprintf("%s-chunk-%d", id, i),
			SectionID: id,
			Text:      "chunk",
			Embedding: e,
		}
	}
	require.NoError(t, store.AppendSection(context.Background(), section, chunks))
}

func TestSearchRefillsPastDedupedDuplicates(t *testing.T) {
	store := NewMemoryStore(testDims)
	svc := NewService(store, nil)

	query := axisVec(1, 0, 0)

	// sec-1 owns the two best chunks for this query. With count 2, dedup must
	// refill from the next-best chunk so two distinct parents come back.
	seedManual(t, store, "sec-1", "a.md", nil,
		axisVec(1, 0, 0),      // sim 1.0
		axisVec(0.9, 0.1, 1)) // sim ~0.995
	seedManual(t, store, "sec-2", "b.md", nil,
		axisVec(0.5, 0.5, 2)) // sim ~0.707

	results, err := svc.Search(context.Background(), Query{
		Embedding: query,
		Threshold: 0,
		Count:     2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "sec-1", results[0].Section.ID)
	assert.Equal(t, "sec-2", results[1].Section.ID)
}

func TestSearchPartialResultsAreValid(t *testing.T) {
	store := NewMemoryStore(testDims)
	emb := embedder.NewMockEmbedder(testDims)
	svc := NewService(store, emb)

	seedSection(t, store, emb, "sec-1", "a.md", nil, "only one section exists")

	results, err := svc.Search(context.Background(), Query{
		Embedding: embed(t, emb, "only one section exists"),
		Threshold: 0,
		Count:     10,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1, "exhausted candidates yield partial results, not an error")
}

func TestSearchMetadataFilter(t *testing.T) {
	store := NewMemoryStore(testDims)
	emb := embedder.NewMockEmbedder(testDims)
	svc := NewService(store, emb)

	chunkText := "the drowned kingdom beneath the strait"
	seedSection(t, store, emb, "sec-lore", "lore.md", map[string]any{"type": "lore", "era": "second"}, chunkText)
	seedSection(t, store, emb, "sec-draft", "draft.md", map[string]any{"type": "draft"}, chunkText)

	// Identical chunk embedding, high threshold, count 1, filter on type:
	// exactly the lore section comes back with similarity ~1.0.
	results, err := svc.Search(context.Background(), Query{
		Embedding: embed(t, emb, chunkText),
		Threshold: 0.8,
		Count:     1,
		Filter:    map[string]any{"type": "lore"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sec-lore", results[0].Section.ID)
	assert.Equal(t, "lore.md", results[0].Section.SourceFile)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestSearchFilterRefillsFromLowerRanked(t *testing.T) {
	store := NewMemoryStore(testDims)
	svc := NewService(store, nil)

	// The best match fails the filter; the service must keep walking instead
	// of returning empty.
	seedManual(t, store, "sec-wrong", "w.md", map[string]any{"type": "draft"},
		axisVec(1, 0, 0)) // sim 1.0 but filtered out
	seedManual(t, store, "sec-right", "r.md", map[string]any{"type": "lore"},
		axisVec(0.6, 0.4, 3)) // lower sim, passes filter

	results, err := svc.Search(context.Background(), Query{
		Embedding: axisVec(1, 0, 0),
		Threshold: 0,
		Count:     1,
		Filter:    map[string]any{"type": "lore"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sec-right", results[0].Section.ID)
}

func TestSearchValidatesQuery(t *testing.T) {
	svc := NewService(NewMemoryStore(testDims), nil)

	tests := []struct {
		name  string
		query Query
	}{
		{"empty embedding", Query{Count: 1}},
		{"zero count", Query{Embedding: []float64{1}, Count: 0}},
		{"negative threshold", Query{Embedding: []float64{1}, Count: 1, Threshold: -0.1}},
		{"threshold above one", Query{Embedding: []float64{1}, Count: 1, Threshold: 1.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tt.query)
			assert.Error(t, err)
		})
	}
}

func TestSearchText(t *testing.T) {
	store := NewMemoryStore(testDims)
	emb := embedder.NewMockEmbedder(testDims)
	svc := NewService(store, emb)

	seedSection(t, store, emb, "sec-1", "a.md", nil, "the ember wars")

	results, err := svc.SearchText(context.Background(), "the ember wars", 0.5, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}
