package node

import (
	"context"
	"log/slog"

	"github.com/Zhanna110/worldsmith-v3/internal/registry"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
)

// Dispatcher pops the next entity off the queue and resets the per-entity
// critique fields. When the in-run queue is drained it falls back to the
// highest-priority pending entry in the registry, so backlog accumulated by
// earlier runs keeps getting worked.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewDispatcher creates the dispatcher node.
func NewDispatcher(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: reg, logger: logger}
}

// Name returns the phase this node serves.
func (d *Dispatcher) Name() router.Phase {
	return router.PhaseDispatch
}

// Execute selects the next entity. An empty CurrentEntity in the returned
// partial signals the router that the run is complete.
func (d *Dispatcher) Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error) {
	queue := append([]string(nil), s.EntityQueue...)

	var next string
	for len(queue) > 0 {
		candidate := queue[0]
		queue = queue[1:]
		if s.Visited(candidate) || d.registry.IsComplete(candidate) {
			continue
		}
		next = candidate
		break
	}

	if next == "" {
		if e := d.registry.NextPending(); e != nil && !s.Visited(e.Name) {
			next = e.Name
			d.logger.Info("dispatcher pulled from registry backlog",
				"entity", next, "score", e.Score())
		}
	}

	if next == "" {
		d.logger.Info("entity queue drained, run complete",
			"entities_visited", len(s.VisitedEntities))
		return state.Partial{
			EntityQueue:   state.QueuePtr(queue),
			CurrentEntity: state.StringPtr(""),
		}, 0, nil
	}

	category := ""
	tier := 6
	if e := d.lookup(next); e != nil {
		category = e.Category
		tier = e.Tier
	}
	density := densityForTier(tier)

	d.logger.Info("dispatching entity",
		"entity", next,
		"category", category,
		"density", density.Label,
		"queue_depth", len(queue))

	return state.Partial{
		EntityQueue:   state.QueuePtr(queue),
		CurrentEntity: state.StringPtr(next),
		Category:      state.StringPtr(category),
		Density:       &density,
		Outline:       state.StringPtr(""),
		DraftText:     state.StringPtr(""),
		CritiqueNotes: state.StringPtr(""),
		CritiqueCount: state.IntPtr(0),
		Approved:      state.BoolPtr(false),
		ForcedApprove: state.BoolPtr(false),
	}, 0, nil
}

func (d *Dispatcher) lookup(name string) *registry.Entry {
	for _, e := range d.registry.Pending() {
		if e.Name == name {
			return &e
		}
	}
	return nil
}
