package router

import (
	"github.com/Zhanna110/worldsmith-v3/internal/state"
)

// MaxRevisions is the revision cap for the critique loop. Once an entity has
// consumed more than this many REVISE verdicts, the router force-routes to the
// scanner and the draft is accepted as-is. Tunable, not derived.
const MaxRevisions = 3

// Phase identifies a node slot in the critique state machine.
type Phase string

const (
	PhaseArchitect Phase = "architect"
	PhaseDispatch  Phase = "dispatcher"
	PhaseOutline   Phase = "outliner"
	PhaseDraft     Phase = "creator"
	PhaseCritique  Phase = "editor"
	PhaseScan      Phase = "scanner"

	// PhaseDone is the terminal state, reached when the dispatcher finds the
	// entity queue empty.
	PhaseDone Phase = "done"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Reason explains why the router chose a transition. Forced approvals must be
// distinguishable downstream from genuine ones.
type Reason string

const (
	ReasonStart       Reason = "start"
	ReasonSequence    Reason = "sequence"
	ReasonQueueEmpty  Reason = "queue_empty"
	ReasonApproved    Reason = "verdict_approve"
	ReasonRevise      Reason = "verdict_revise"
	ReasonRevisionCap Reason = "revision_cap_forced"
)

// Decision is the router's choice of next phase plus the rationale.
type Decision struct {
	Next   Phase
	Reason Reason
}

// Forced reports whether this decision is the revision-cap escape valve.
func (d Decision) Forced() bool {
	return d.Reason == ReasonRevisionCap
}

// Router evaluates conditional edges on a StateRecord to pick the next node.
// Transitions:
//
//	ARCHITECT -> DISPATCH -> OUTLINE -> DRAFT -> CRITIQUE
//	CRITIQUE -> {REVISE -> DRAFT | APPROVE -> SCAN} -> DISPATCH | DONE
type Router struct{}

// New creates a Router.
func New() *Router {
	return &Router{}
}

// Next returns the phase to execute after last, given the current state.
// An empty last phase starts the machine at the architect.
func (r *Router) Next(s *state.StateRecord, last Phase) Decision {
	switch last {
	case "":
		return Decision{Next: PhaseArchitect, Reason: ReasonStart}

	case PhaseArchitect, PhaseScan:
		return Decision{Next: PhaseDispatch, Reason: ReasonSequence}

	case PhaseDispatch:
		if s.CurrentEntity == "" {
			return Decision{Next: PhaseDone, Reason: ReasonQueueEmpty}
		}
		return Decision{Next: PhaseOutline, Reason: ReasonSequence}

	case PhaseOutline:
		return Decision{Next: PhaseDraft, Reason: ReasonSequence}

	case PhaseDraft:
		return Decision{Next: PhaseCritique, Reason: ReasonSequence}

	case PhaseCritique:
		if s.Approved {
			return Decision{Next: PhaseScan, Reason: ReasonApproved}
		}
		// REVISE verdict: loop back to the creator unless the cap is spent,
		// in which case the draft moves on regardless of verdict.
		if s.CritiqueCount > MaxRevisions {
			return Decision{Next: PhaseScan, Reason: ReasonRevisionCap}
		}
		return Decision{Next: PhaseDraft, Reason: ReasonRevise}

	default:
		return Decision{Next: PhaseDone, Reason: ReasonQueueEmpty}
	}
}
