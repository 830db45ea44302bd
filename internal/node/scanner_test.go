package node

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhanna110/worldsmith-v3/internal/embedder"
	"github.com/Zhanna110/worldsmith-v3/internal/ingest"
	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/retrieval"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
	"github.com/Zhanna110/worldsmith-v3/internal/vault"
)

const noDiscoveries = `{"entities": []}`

func scannerFixture(t *testing.T, responses []string) (*Scanner, *vault.Vault, retrieval.Store) {
	t.Helper()

	v, err := vault.New(t.TempDir())
	require.NoError(t, err)

	store := retrieval.NewMemoryStore(32)
	ing := ingest.New(store, embedder.NewMockEmbedder(32))
	reg := tempRegistry(t)

	sc := NewScanner(llm.NewMock(responses), v, ing, reg, nil)
	return sc, v, store
}

func approvedState(entity string) *state.StateRecord {
	s := state.New(nil)
	s.CurrentEntity = entity
	s.Category = "locations"
	s.Approved = true
	s.DraftText = "# " + entity + "\n\n## Origins\n\nA long paragraph about the origins of this place, full of grounded specifics.\n"
	return s
}

func TestScannerPersistsAndIngests(t *testing.T) {
	sc, v, store := scannerFixture(t, []string{noDiscoveries})
	s := approvedState("The Citadel")

	partial, cost, err := sc.Execute(context.Background(), s)
	require.NoError(t, err)
	assert.Greater(t, cost, 0)
	assert.Equal(t, "The Citadel", partial.VisitEntity)
	require.NotEmpty(t, partial.AppendPath)

	data, err := os.ReadFile(partial.AppendPath)
	require.NoError(t, err)
	fm, body := vault.ParseFrontmatter(string(data))
	assert.Equal(t, "The Citadel", fm.Title)
	assert.Equal(t, vault.StatusGenerated, fm.Status)
	assert.Contains(t, body, "## Origins")
	assert.Contains(t, partial.AppendPath, v.Root())

	count, err := store.SectionCount(context.Background())
	require.NoError(t, err)
	assert.Greater(t, count, 0, "finalized article is ingested as lore")

	assert.True(t, sc.registry.IsComplete("The Citadel"))
}

func TestScannerMarksForcedApproveForReview(t *testing.T) {
	sc, _, _ := scannerFixture(t, []string{noDiscoveries})
	s := approvedState("The Citadel")
	s.ForcedApprove = true
	s.CritiqueCount = 4

	partial, _, err := sc.Execute(context.Background(), s)
	require.NoError(t, err)
	require.NotEmpty(t, partial.AppendPath)

	data, err := os.ReadFile(partial.AppendPath)
	require.NoError(t, err)
	fm, _ := vault.ParseFrontmatter(string(data))
	assert.Equal(t, vault.StatusNeedsReview, fm.Status,
		"forced approvals must be distinguishable from genuine ones")
}

func TestScannerDiscoversNewEntities(t *testing.T) {
	discovery := `{"entities": [
		{"name": "Iron Pact", "category": "factions", "tier": 3},
		{"name": "The Citadel", "category": "locations", "tier": 1},
		{"name": "Already Queued", "category": "figures", "tier": 4}
	]}`
	sc, _, _ := scannerFixture(t, []string{discovery})

	s := approvedState("The Citadel")
	s.EntityQueue = []string{"Already Queued"}

	partial, _, err := sc.Execute(context.Background(), s)
	require.NoError(t, err)

	s.Apply(partial)
	// The current entity and the already-queued one are not re-added.
	assert.Equal(t, []string{"Already Queued", "Iron Pact"}, s.EntityQueue)
	assert.True(t, sc.registry.Contains("Iron Pact"))
}

func TestScannerDiscoveryFailureKeepsQueue(t *testing.T) {
	sc, _, _ := scannerFixture(t, []string{"not json at all {"})

	s := approvedState("The Citadel")
	s.EntityQueue = []string{"Pending One"}

	partial, _, err := sc.Execute(context.Background(), s)
	require.NoError(t, err, "discovery failure never fails the node")

	s.Apply(partial)
	assert.Equal(t, []string{"Pending One"}, s.EntityQueue)
	assert.NotEmpty(t, partial.AppendPath, "the article is still persisted")
}
