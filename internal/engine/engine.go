package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhanna110/worldsmith-v3/internal/budget"
	"github.com/Zhanna110/worldsmith-v3/internal/node"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// TerminationReason tags how a run ended.
type TerminationReason string

const (
	// ReasonCompleted means the entity queue drained normally.
	ReasonCompleted TerminationReason = "COMPLETED"

	// ReasonAbortedBudget means the budget guard tripped and no further node
	// was dispatched.
	ReasonAbortedBudget TerminationReason = "ABORTED_BUDGET"

	// ReasonCancelled means the operator aborted the run.
	ReasonCancelled TerminationReason = "CANCELLED"
)

// TerminationResult reports how a run ended and what it accomplished.
type TerminationResult struct {
	Reason            TerminationReason `json:"reason"`
	StoppedOn         string            `json:"stopped_on,omitempty"`
	TokensConsumed    int               `json:"tokens_consumed"`
	EntitiesCompleted int               `json:"entities_completed"`
	ForcedApprovals   int               `json:"forced_approvals"`
	FailedEntities    []string          `json:"failed_entities,omitempty"`
	GeneratedPaths    []string          `json:"generated_paths,omitempty"`
	Duration          time.Duration     `json:"duration"`
}

// EntityFinalized is emitted when the scanner persists an entity's article.
// External collaborators (the file watcher, verification tooling) consume
// only this event; nothing feeds back into run state.
type EntityFinalized struct {
	Entity string
	Path   string
}

// WorkflowEngine drives the node registry, router, and budget guard to
// completion or abort. One live StateRecord at a time; node execution is
// synchronous and the budget gate is checked before every dispatch, never
// mid-node.
type WorkflowEngine struct {
	registry   *node.Registry
	router     *router.Router
	guard      *budget.Guard
	logger     *slog.Logger
	tracer     trace.Tracer
	maxRetries int
	backoff    time.Duration
	events     chan EntityFinalized
}

// Option configures a WorkflowEngine.
type Option func(*WorkflowEngine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *WorkflowEngine) {
		e.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for run and node spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *WorkflowEngine) {
		e.tracer = tracer
	}
}

// WithMaxRetries sets how many times a retryable node failure is retried
// before the entity is requeued or failed.
func WithMaxRetries(n int) Option {
	return func(e *WorkflowEngine) {
		e.maxRetries = n
	}
}

// WithRetryBackoff sets the base backoff between node retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *WorkflowEngine) {
		e.backoff = d
	}
}

// New creates a WorkflowEngine.
func New(registry *node.Registry, rt *router.Router, guard *budget.Guard, opts ...Option) *WorkflowEngine {
	e := &WorkflowEngine{
		registry:   registry,
		router:     rt,
		guard:      guard,
		logger:     slog.Default(),
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		events:     make(chan EntityFinalized, 64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the finalization event stream. Events are dropped, not
// blocked on, if no consumer keeps up.
func (e *WorkflowEngine) Events() <-chan EntityFinalized {
	return e.events
}

// Run executes the workflow from the seeded entity queue until the queue
// drains, the budget trips, or the context is cancelled. The returned result
// is non-nil for budget aborts and cancellations too; the error is reserved
// for unrecoverable engine failures.
func (e *WorkflowEngine) Run(ctx context.Context, seed []string) (*TerminationResult, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "engine.Run",
			trace.WithAttributes(attribute.Int("seed_entities", len(seed))))
		defer span.End()
	}

	s := state.New(seed)
	started := time.Now()
	result := &TerminationResult{}
	requeued := make(map[string]bool)

	defer func() {
		if err := e.guard.Flush(); err != nil {
			e.logger.Error("failed to flush budget ledger", "error", err)
		}
	}()

	e.logger.Info("workflow run starting",
		"seed_entities", len(seed),
		"budget_remaining", e.guard.Ceiling()-e.guard.Total())

	var last router.Phase
	for {
		// Cancellation and the budget gate are checked between nodes only;
		// in-flight work always completes.
		if ctx.Err() != nil {
			return e.finish(result, s, ReasonCancelled, started), nil
		}

		decision := e.router.Next(s, last)
		if decision.Next == router.PhaseDone {
			return e.finish(result, s, ReasonCompleted, started), nil
		}

		if decision.Forced() {
			// Revision cap spent: the draft is accepted as-is, flagged so it
			// is never mistaken for a genuine editorial pass.
			e.logger.Warn("revision cap reached, forcing approval",
				"entity", s.CurrentEntity,
				"critique_count", s.CritiqueCount)
			s.Apply(state.Partial{
				Approved:      state.BoolPtr(true),
				ForcedApprove: state.BoolPtr(true),
			})
			result.ForcedApprovals++
		}

		if !e.guard.Allow() {
			e.logger.Error("budget ceiling reached, aborting run",
				"entity", s.CurrentEntity,
				"total_tokens", e.guard.Total(),
				"ceiling", e.guard.Ceiling())
			return e.finish(result, s, ReasonAbortedBudget, started), nil
		}

		n, err := e.registry.Get(decision.Next)
		if err != nil {
			return nil, err
		}

		partial, cost, err := e.executeWithRetry(ctx, n, s)
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(result, s, ReasonCancelled, started), nil
			}
			last = e.failEntity(s, result, requeued, err)
			continue
		}

		s.Apply(partial)
		s.Apply(state.Partial{TokensConsumed: cost})
		if s.LastError != "" && partial.LastError == nil {
			s.LastError = ""
		}

		allowed := e.guard.Charge(int64(cost))
		if !allowed {
			e.logger.Error("budget ceiling crossed, no further nodes will run",
				"entity", s.CurrentEntity,
				"total_tokens", e.guard.Total(),
				"ceiling", e.guard.Ceiling())
			return e.finish(result, s, ReasonAbortedBudget, started), nil
		}

		if decision.Next == router.PhaseScan {
			result.EntitiesCompleted++
			if partial.AppendPath != "" {
				e.emit(EntityFinalized{Entity: s.CurrentEntity, Path: partial.AppendPath})
			}
		}

		last = decision.Next
	}
}

// executeWithRetry runs a node, retrying retryable failures with linear
// backoff. Non-retryable failures return immediately.
func (e *WorkflowEngine) executeWithRetry(ctx context.Context, n node.Node, s *state.StateRecord) (state.Partial, int, error) {
	execute := func(ctx context.Context) (state.Partial, int, error) {
		if e.tracer == nil {
			return n.Execute(ctx, s)
		}
		ctx, span := e.tracer.Start(ctx, "node."+n.Name().String(),
			trace.WithAttributes(attribute.String("entity", s.CurrentEntity)))
		defer span.End()
		return n.Execute(ctx, s)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Warn("retrying node",
				"node", n.Name(),
				"entity", s.CurrentEntity,
				"attempt", attempt,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return state.Partial{}, 0, ctx.Err()
			case <-time.After(e.backoff * time.Duration(attempt)):
			}
		}

		partial, cost, err := execute(ctx)
		if err == nil {
			return partial, cost, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			break
		}
	}

	return state.Partial{}, 0, lastErr
}

// failEntity handles a node failure at the entity boundary: the entity is
// requeued once, then marked failed. Either way the run moves on to the next
// entity instead of unwinding.
func (e *WorkflowEngine) failEntity(s *state.StateRecord, result *TerminationResult, requeued map[string]bool, err error) router.Phase {
	entity := s.CurrentEntity
	if entity == "" {
		// Failure outside any entity (architect): nothing to requeue.
		e.logger.Error("node failed before any entity was in flight", "error", err)
		s.Apply(state.Partial{LastError: state.StringPtr(err.Error())})
		return router.PhaseArchitect
	}

	if !requeued[entity] {
		requeued[entity] = true
		queue := append(append([]string(nil), s.EntityQueue...), entity)
		e.logger.Warn("entity failed, requeueing once",
			"entity", entity, "error", err)
		s.Apply(state.Partial{
			EntityQueue: state.QueuePtr(queue),
			LastError:   state.StringPtr(err.Error()),
		})
	} else {
		e.logger.Error("entity failed after requeue, marking failed",
			"entity", entity, "error", err)
		result.FailedEntities = append(result.FailedEntities, entity)
		s.Apply(state.Partial{
			VisitEntity: entity,
			LastError:   state.StringPtr(err.Error()),
		})
	}

	// Routing from the scan phase lands on the dispatcher next.
	s.Apply(state.Partial{CurrentEntity: state.StringPtr("")})
	return router.PhaseScan
}

// emit publishes a finalization event without blocking the run loop.
func (e *WorkflowEngine) emit(ev EntityFinalized) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event channel full, dropping finalization event",
			"entity", ev.Entity)
	}
}

// finish populates the result from final state.
func (e *WorkflowEngine) finish(result *TerminationResult, s *state.StateRecord, reason TerminationReason, started time.Time) *TerminationResult {
	result.Reason = reason
	result.StoppedOn = s.CurrentEntity
	result.TokensConsumed = s.TokensConsumed
	result.GeneratedPaths = append([]string(nil), s.GeneratedPaths...)
	result.Duration = time.Since(started)
	close(e.events)

	e.logger.Info("workflow run finished",
		"reason", reason,
		"entities_completed", result.EntitiesCompleted,
		"forced_approvals", result.ForcedApprovals,
		"tokens_consumed", result.TokensConsumed,
		"duration", result.Duration)

	return result
}
