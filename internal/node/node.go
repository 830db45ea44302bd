package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Node is a single execution unit in the workflow. Execute receives a
// snapshot of the run state and returns only the fields it changed plus the
// token cost of any generation calls it made. A node must never mutate its
// input.
type Node interface {
	// Name returns the phase this node serves.
	Name() router.Phase

	// Execute runs the node against a state snapshot.
	Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error)
}

// Registry maps workflow phases to their execution units. Registration
// happens at engine construction; lookups during the run are read-only.
type Registry struct {
	mu    sync.RWMutex
	nodes map[router.Phase]Node
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[router.Phase]Node)}
}

// Register adds a node under its phase, replacing any previous registration.
func (r *Registry) Register(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.Name()] = n
}

// Get returns the node registered for a phase.
func (r *Registry) Get(phase router.Phase) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[phase]
	if !ok {
		return nil, types.NewError(types.NODE_NOT_FOUND,
			fmt.Sprintf("no node registered for phase: %s", phase))
	}
	return n, nil
}

// Phases returns the registered phases.
func (r *Registry) Phases() []router.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]router.Phase, 0, len(r.nodes))
	for p := range r.nodes {
		out = append(out, p)
	}
	return out
}
