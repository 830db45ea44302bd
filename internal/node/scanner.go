package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Zhanna110/worldsmith-v3/internal/ingest"
	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/registry"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
	"github.com/Zhanna110/worldsmith-v3/internal/vault"
)

const scannerSystem = `You are a continuity editor reading a finished
encyclopedia entry. List every named entity (faction, location, figure,
artifact, event) the entry references that could deserve its own entry.
Assign each a category and an importance tier from 1 (foundational) to 6
(peripheral). Respond with JSON only:
{"entities": [{"name": "...", "category": "...", "tier": 3}]}`

// Scanner finalizes an approved draft: stamps and persists it to the vault,
// ingests it into the retrieval store so later entities can cite it, and
// discovers newly referenced entities for the queue.
type Scanner struct {
	provider llm.Provider
	vault    *vault.Vault
	ingester *ingest.Ingester
	registry *registry.Registry
	logger   *slog.Logger
}

// NewScanner creates the scanner node.
func NewScanner(provider llm.Provider, v *vault.Vault, ing *ingest.Ingester, reg *registry.Registry, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{provider: provider, vault: v, ingester: ing, registry: reg, logger: logger}
}

// Name returns the phase this node serves.
func (sc *Scanner) Name() router.Phase {
	return router.PhaseScan
}

// Execute persists the approved draft and expands the queue with discovered
// entities. A rejected write path fails only the persistence of this one
// artifact; the run continues with the failure recorded in state.
func (sc *Scanner) Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error) {
	partial := state.Partial{
		VisitEntity: s.CurrentEntity,
	}

	status := vault.StatusGenerated
	if s.ForcedApprove {
		status = vault.StatusNeedsReview
		sc.logger.Warn("persisting forced-approve draft for human review",
			"entity", s.CurrentEntity,
			"revisions_exhausted", s.CritiqueCount)
	}

	tier := 6
	if e := sc.findEntry(s.CurrentEntity); e != nil {
		tier = e.Tier
	}

	stamped, err := vault.Stamp(s.DraftText, vault.Frontmatter{
		Title:    s.CurrentEntity,
		Category: s.Category,
		Tier:     tier,
		Status:   status,
	})
	if err != nil {
		return state.Partial{}, 0, err
	}

	rel := vault.ArticlePath(s.Category, s.CurrentEntity)
	path, err := sc.vault.SafeWrite(rel, []byte(stamped))
	if err != nil {
		if types.CodeOf(err) == types.PATH_TRAVERSAL_REJECTED {
			sc.logger.Error("article not persisted: write path rejected",
				"entity", s.CurrentEntity, "path", rel, "error", err)
			partial.LastError = state.StringPtr(err.Error())
		} else {
			return state.Partial{}, 0, err
		}
	} else {
		partial.AppendPath = path
		if err := sc.markComplete(s.CurrentEntity, s.Category, tier); err != nil {
			sc.logger.Warn("failed to mark entity complete in registry",
				"entity", s.CurrentEntity, "error", err)
		}

		if sc.ingester != nil {
			if _, err := sc.ingester.IngestDocument(ctx, rel, stamped); err != nil {
				// Lore index lag is recoverable; the article itself is safe.
				sc.logger.Warn("failed to ingest finalized article",
					"entity", s.CurrentEntity, "error", err)
			}
		}
	}

	cost, queue := sc.discover(ctx, s)
	partial.EntityQueue = state.QueuePtr(queue)

	sc.logger.Info("entity finalized",
		"entity", s.CurrentEntity,
		"path", path,
		"status", status,
		"queue_depth", len(queue))

	return partial, cost, nil
}

// discover asks the continuity pass for newly referenced entities and appends
// the ones not yet tracked. Discovery failures leave the queue unchanged.
func (sc *Scanner) discover(ctx context.Context, s *state.StateRecord) (int, []string) {
	queue := append([]string(nil), s.EntityQueue...)
	if sc.provider == nil {
		return 0, queue
	}

	resp, err := sc.provider.Complete(ctx, llm.Request{
		System:      scannerSystem,
		Prompt:      fmt.Sprintf("Entry for %q:\n\n%s", s.CurrentEntity, s.DraftText),
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		sc.logger.Warn("entity discovery failed", "entity", s.CurrentEntity, "error", err)
		return 0, queue
	}

	var parsed architectResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		sc.logger.Warn("entity discovery returned unparseable analysis",
			"entity", s.CurrentEntity, "error", err)
		return resp.Usage.TotalTokens, queue
	}

	added := 0
	for _, e := range parsed.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" || strings.EqualFold(name, s.CurrentEntity) {
			continue
		}
		sc.registry.Add(name, e.Category, e.Tier)
		if s.Visited(name) || contains(queue, name) || sc.registry.IsComplete(name) {
			continue
		}
		queue = append(queue, name)
		added++
	}

	if added > 0 {
		sc.logger.Info("discovered new entities", "entity", s.CurrentEntity, "added", added)
	}

	return resp.Usage.TotalTokens, queue
}

func (sc *Scanner) findEntry(name string) *registry.Entry {
	for _, e := range sc.registry.Pending() {
		if strings.EqualFold(e.Name, name) {
			return &e
		}
	}
	return nil
}

// markComplete ensures the entity exists in the registry before completing
// it, covering operator-seeded entities the architect never registered.
func (sc *Scanner) markComplete(name, category string, tier int) error {
	if !sc.registry.Contains(name) {
		sc.registry.Add(name, category, tier)
	}
	return sc.registry.MarkComplete(name)
}
