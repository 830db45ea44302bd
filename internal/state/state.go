package state

import (
	"time"
)

// Verdict is the outcome of an editorial critique pass.
type Verdict string

const (
	// VerdictApprove accepts the current draft and routes it to the scanner.
	VerdictApprove Verdict = "approve"

	// VerdictRevise rejects the draft and routes back to the creator with notes.
	VerdictRevise Verdict = "revise"
)

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	return string(v)
}

// Density describes how much content an entity warrants, derived from its tier.
type Density struct {
	// Label is the human-readable density class (e.g. "TIER 1 FOUNDATION").
	Label string `json:"label"`

	// TargetWords is the target word count for the drafted entry.
	TargetWords int `json:"target_words"`

	// Description explains the simulation depth expected at this density.
	Description string `json:"description"`
}

// StateRecord is the single unit of truth threaded through one workflow run.
// It is mutable by replacement only: nodes receive a snapshot and return a
// Partial holding just the fields they changed.
type StateRecord struct {
	// EntityQueue is the ordered sequence of pending entity identifiers.
	EntityQueue []string `json:"entity_queue"`

	// CurrentEntity is the identifier of the entity being processed, or empty.
	CurrentEntity string `json:"current_entity"`

	// Category is the vault category the current entity was classified into.
	Category string `json:"category"`

	// Density is the density settings resolved for the current entity.
	Density Density `json:"density"`

	// Outline is the structural blueprint produced for the current entity.
	Outline string `json:"outline"`

	// DraftText is the latest generated content for CurrentEntity.
	DraftText string `json:"draft_text"`

	// CritiqueNotes is free-form revision feedback; empty when none pending.
	CritiqueNotes string `json:"critique_notes"`

	// CritiqueCount is the number of revision cycles consumed for the current
	// entity. It resets to 0 when a new entity begins processing and increases
	// only on a REVISE verdict.
	CritiqueCount int `json:"critique_count"`

	// Approved is set true only by the editor node.
	Approved bool `json:"approved"`

	// ForcedApprove marks an approval produced by the revision-cap escape
	// valve rather than a genuine editorial pass.
	ForcedApprove bool `json:"forced_approve"`

	// TokensConsumed is the running token total attributable to this run.
	TokensConsumed int `json:"tokens_consumed"`

	// VisitedEntities tracks identifiers already processed this run.
	VisitedEntities map[string]struct{} `json:"-"`

	// GeneratedPaths lists vault paths written during this run, in order.
	GeneratedPaths []string `json:"generated_paths"`

	// LastError carries a node-boundary failure marker without unwinding the
	// engine. Cleared when the next node completes successfully.
	LastError string `json:"last_error,omitempty"`

	// StartedAt is when this record began processing.
	StartedAt time.Time `json:"started_at"`
}

// New creates a StateRecord seeded with the given entity queue.
func New(seed []string) *StateRecord {
	queue := make([]string, len(seed))
	copy(queue, seed)
	return &StateRecord{
		EntityQueue:     queue,
		VisitedEntities: make(map[string]struct{}),
		StartedAt:       time.Now(),
	}
}

// Clone returns a deep copy of the record. Nodes operate on clones so the
// engine's copy is never mutated in place.
func (s *StateRecord) Clone() *StateRecord {
	out := *s
	out.EntityQueue = append([]string(nil), s.EntityQueue...)
	out.GeneratedPaths = append([]string(nil), s.GeneratedPaths...)
	out.VisitedEntities = make(map[string]struct{}, len(s.VisitedEntities))
	for k := range s.VisitedEntities {
		out.VisitedEntities[k] = struct{}{}
	}
	return &out
}

// Visited reports whether the given entity was already processed this run.
func (s *StateRecord) Visited(entity string) bool {
	_, ok := s.VisitedEntities[entity]
	return ok
}

// InQueue reports whether the given entity is already pending.
func (s *StateRecord) InQueue(entity string) bool {
	for _, e := range s.EntityQueue {
		if e == entity {
			return true
		}
	}
	return false
}

// Partial is a sparse state update returned by a node. Only set fields are
// applied; each pointer distinguishes "unchanged" from "set to zero value".
type Partial struct {
	EntityQueue    *[]string
	CurrentEntity  *string
	Category       *string
	Density        *Density
	Outline        *string
	DraftText      *string
	CritiqueNotes  *string
	CritiqueCount  *int
	Approved       *bool
	ForcedApprove  *bool
	VisitEntity    string
	AppendPath     string
	LastError      *string
	TokensConsumed int
}

// Apply merges a partial update into the record, replacing only the fields the
// node reported. TokensConsumed accumulates rather than replaces.
func (s *StateRecord) Apply(p Partial) {
	if p.EntityQueue != nil {
		s.EntityQueue = append([]string(nil), (*p.EntityQueue)...)
	}
	if p.CurrentEntity != nil {
		s.CurrentEntity = *p.CurrentEntity
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Density != nil {
		s.Density = *p.Density
	}
	if p.Outline != nil {
		s.Outline = *p.Outline
	}
	if p.DraftText != nil {
		s.DraftText = *p.DraftText
	}
	if p.CritiqueNotes != nil {
		s.CritiqueNotes = *p.CritiqueNotes
	}
	if p.CritiqueCount != nil {
		s.CritiqueCount = *p.CritiqueCount
	}
	if p.Approved != nil {
		s.Approved = *p.Approved
	}
	if p.ForcedApprove != nil {
		s.ForcedApprove = *p.ForcedApprove
	}
	if p.VisitEntity != "" {
		if s.VisitedEntities == nil {
			s.VisitedEntities = make(map[string]struct{})
		}
		s.VisitedEntities[p.VisitEntity] = struct{}{}
	}
	if p.AppendPath != "" {
		s.GeneratedPaths = append(s.GeneratedPaths, p.AppendPath)
	}
	if p.LastError != nil {
		s.LastError = *p.LastError
	}
	s.TokensConsumed += p.TokensConsumed
}

// Helper constructors keep node code terse.

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to the given int.
func IntPtr(n int) *int { return &n }

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool { return &b }

// QueuePtr returns a pointer to a copy of the given queue.
func QueuePtr(q []string) *[]string {
	out := append([]string(nil), q...)
	return &out
}
