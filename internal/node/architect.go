package node

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/registry"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

const architectSystem = `You are the structural architect of a fictional world.
Given source material, identify the named entities (factions, locations,
figures, artifacts, events) that deserve their own encyclopedia entry.
Assign each a category and an importance tier from 1 (foundational) to 6
(peripheral). Respond with JSON only:
{"entities": [{"name": "...", "category": "...", "tier": 1}]}`

// Architect seeds the entity queue by analyzing source material. If the run
// was operator-seeded with explicit entities, those lead the queue and the
// analysis only appends.
type Architect struct {
	provider llm.Provider
	registry *registry.Registry
	source   string
	logger   *slog.Logger
}

// NewArchitect creates the architect node over the given source material.
func NewArchitect(provider llm.Provider, reg *registry.Registry, source string, logger *slog.Logger) *Architect {
	if logger == nil {
		logger = slog.Default()
	}
	return &Architect{provider: provider, registry: reg, source: source, logger: logger}
}

// Name returns the phase this node serves.
func (a *Architect) Name() router.Phase {
	return router.PhaseArchitect
}

type architectResponse struct {
	Entities []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Tier     int    `json:"tier"`
	} `json:"entities"`
}

// Execute analyzes the source material and seeds the entity queue.
func (a *Architect) Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error) {
	queue := append([]string(nil), s.EntityQueue...)

	if strings.TrimSpace(a.source) == "" {
		// Nothing to analyze; run entirely from the seeded queue.
		return state.Partial{EntityQueue: state.QueuePtr(queue)}, 0, nil
	}

	resp, err := a.provider.Complete(ctx, llm.Request{
		System:      architectSystem,
		Prompt:      a.source,
		JSON:        true,
		Temperature: 0.3,
	})
	if err != nil {
		return state.Partial{}, 0, err
	}

	var parsed architectResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return state.Partial{}, resp.Usage.TotalTokens,
			types.WrapError(types.NODE_EXECUTION_FAILED, "architect returned unparseable analysis", err)
	}

	// Foundational entities get generated first.
	sort.SliceStable(parsed.Entities, func(i, j int) bool {
		return parsed.Entities[i].Tier < parsed.Entities[j].Tier
	})

	added := 0
	for _, e := range parsed.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		a.registry.Add(name, e.Category, e.Tier)
		if s.Visited(name) || contains(queue, name) {
			continue
		}
		queue = append(queue, name)
		added++
	}

	a.logger.Info("architect seeded queue",
		"discovered", len(parsed.Entities),
		"added", added,
		"queue_depth", len(queue))

	return state.Partial{EntityQueue: state.QueuePtr(queue)}, resp.Usage.TotalTokens, nil
}

// extractJSON strips markdown code fences some providers wrap around JSON
// responses.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

func contains(queue []string, name string) bool {
	for _, q := range queue {
		if strings.EqualFold(q, name) {
			return true
		}
	}
	return false
}
