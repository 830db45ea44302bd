package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhanna110/worldsmith-v3/internal/budget"
	"github.com/Zhanna110/worldsmith-v3/internal/embedder"
	"github.com/Zhanna110/worldsmith-v3/internal/ingest"
	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/node"
	"github.com/Zhanna110/worldsmith-v3/internal/registry"
	"github.com/Zhanna110/worldsmith-v3/internal/retrieval"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
	"github.com/Zhanna110/worldsmith-v3/internal/vault"
)

const outlineResponse = "# The Citadel\n\n## Origins\n\n- where it came from\n"
const emptyDiscovery = `{"entities": []}`

// shortDraft fails the editor's length check; passingDraft satisfies every
// editorial rule for a tier-6 entity (1200-word target).
const shortDraft = "# The Citadel\n\n## Origins\n\nFar too brief to approve.\n"

func passingDraft(entity string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## Origins\n\n", entity)
	for i := 0; i < 1100; i++ {
		fmt.Fprintf(&b, "%s word%d", entity, i)
		b.WriteString(" ")
	}
	return b.String()
}

type fixture struct {
	engine   *WorkflowEngine
	provider *llm.Mock
	guard    *budget.Guard
	vault    *vault.Vault
	store    retrieval.Store
	registry *registry.Registry
}

func newFixture(t *testing.T, responses []string, ceiling int64) *fixture {
	t.Helper()

	v, err := vault.New(t.TempDir())
	require.NoError(t, err)

	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	store := retrieval.NewMemoryStore(32)
	emb := embedder.NewMockEmbedder(32)
	ing := ingest.New(store, emb)
	svc := retrieval.NewService(store, emb)

	provider := llm.NewMock(responses)

	nodes := node.NewRegistry()
	nodes.Register(node.NewArchitect(provider, reg, "", nil))
	nodes.Register(node.NewDispatcher(reg, nil))
	nodes.Register(node.NewOutliner(provider, svc, 0.9, 2, nil))
	nodes.Register(node.NewCreator(provider, svc, 0.9, 2, nil))
	nodes.Register(node.NewEditor(nil))
	nodes.Register(node.NewScanner(provider, v, ing, reg, nil))

	guard, err := budget.NewGuard(ceiling, nil)
	require.NoError(t, err)

	eng := New(nodes, router.New(), guard,
		WithMaxRetries(3),
		WithRetryBackoff(time.Millisecond),
	)

	return &fixture{
		engine:   eng,
		provider: provider,
		guard:    guard,
		vault:    v,
		store:    store,
		registry: reg,
	}
}

func TestRunReviseThenApprove(t *testing.T) {
	// One entity. The first draft is rejected as too short, the corrected
	// second draft is approved, the scanner finds nothing new.
	f := newFixture(t, []string{
		outlineResponse,
		shortDraft,
		passingDraft("The Citadel"),
		emptyDiscovery,
	}, 10_000_000)

	result, err := f.engine.Run(context.Background(), []string{"The Citadel"})
	require.NoError(t, err)

	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Equal(t, 1, result.EntitiesCompleted)
	assert.Zero(t, result.ForcedApprovals)
	assert.Empty(t, result.FailedEntities)
	assert.Greater(t, result.TokensConsumed, 0)
	require.Len(t, result.GeneratedPaths, 1)

	// The revision request carried the editor's notes into the generation
	// input.
	calls := f.provider.Calls()
	require.Len(t, calls, 4)
	assert.Contains(t, calls[2].Request.Prompt, "too short")
	assert.Contains(t, calls[2].Request.Prompt, "rejected")

	data, err := os.ReadFile(result.GeneratedPaths[0])
	require.NoError(t, err)
	fm, _ := vault.ParseFrontmatter(string(data))
	assert.Equal(t, vault.StatusGenerated, fm.Status)
	assert.Equal(t, "The Citadel", fm.Title)
}

func TestRunForcedApproveAfterRevisionCap(t *testing.T) {
	// Every draft fails review: after the cap, the draft is accepted as-is
	// and flagged for human review.
	f := newFixture(t, []string{
		outlineResponse,
		shortDraft,
		shortDraft,
		shortDraft,
		shortDraft,
		emptyDiscovery,
	}, 10_000_000)

	result, err := f.engine.Run(context.Background(), []string{"The Citadel"})
	require.NoError(t, err)

	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Equal(t, 1, result.EntitiesCompleted)
	assert.Equal(t, 1, result.ForcedApprovals)
	require.Len(t, result.GeneratedPaths, 1)

	data, err := os.ReadFile(result.GeneratedPaths[0])
	require.NoError(t, err)
	fm, _ := vault.ParseFrontmatter(string(data))
	assert.Equal(t, vault.StatusNeedsReview, fm.Status)
}

func TestRunAbortsOnBudget(t *testing.T) {
	f := newFixture(t, []string{
		outlineResponse,
		passingDraft("The Citadel"),
		emptyDiscovery,
	}, 5) // the first generation call crosses the ceiling

	result, err := f.engine.Run(context.Background(), []string{"The Citadel"})
	require.NoError(t, err)

	assert.Equal(t, ReasonAbortedBudget, result.Reason)
	assert.Equal(t, "The Citadel", result.StoppedOn)
	assert.Zero(t, result.EntitiesCompleted)
	assert.True(t, f.guard.Tripped())
	assert.Empty(t, result.GeneratedPaths, "no artifact is persisted after the trip")
}

func TestRunRetriesRetryableFailures(t *testing.T) {
	f := newFixture(t, []string{
		outlineResponse,
		passingDraft("The Citadel"),
		emptyDiscovery,
	}, 10_000_000)

	f.provider.FailNext(2, types.NewRetryableError(types.GENERATE_FAILED, "transient upstream error"))

	result, err := f.engine.Run(context.Background(), []string{"The Citadel"})
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Equal(t, 1, result.EntitiesCompleted)
}

func TestRunFailedEntityRequeuedOnceThenMarked(t *testing.T) {
	f := newFixture(t, []string{outlineResponse}, 10_000_000)

	// Every generation call fails permanently.
	f.provider.FailNext(1000, types.NewError(types.GENERATE_FAILED, "model gone"))

	result, err := f.engine.Run(context.Background(), []string{"The Citadel"})
	require.NoError(t, err)

	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Zero(t, result.EntitiesCompleted)
	assert.Equal(t, []string{"The Citadel"}, result.FailedEntities,
		"the entity fails after exactly one requeue, never silently dropped")
}

func TestRunCancellation(t *testing.T) {
	f := newFixture(t, []string{
		outlineResponse,
		passingDraft("The Citadel"),
		emptyDiscovery,
	}, 10_000_000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.engine.Run(ctx, []string{"The Citadel"})
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, result.Reason)
}

func TestRunEmptySeedCompletesImmediately(t *testing.T) {
	f := newFixture(t, nil, 10_000_000)

	result, err := f.engine.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Zero(t, result.EntitiesCompleted)
	assert.Zero(t, result.TokensConsumed)
}

func TestRunEmitsFinalizationEvents(t *testing.T) {
	f := newFixture(t, []string{
		outlineResponse,
		passingDraft("The Citadel"),
		emptyDiscovery,
	}, 10_000_000)

	result, err := f.engine.Run(context.Background(), []string{"The Citadel"})
	require.NoError(t, err)
	require.Equal(t, 1, result.EntitiesCompleted)

	var events []EntityFinalized
	for ev := range f.engine.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Equal(t, "The Citadel", events[0].Entity)
	assert.Equal(t, result.GeneratedPaths[0], events[0].Path)
}
