package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// EntryStatus tracks an entity's lifecycle in the registry.
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusComplete EntryStatus = "complete"
)

// Entry is one tracked entity: something the world needs an article for.
type Entry struct {
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Tier      int         `json:"tier"`
	Mentions  int         `json:"mentions"`
	Status    EntryStatus `json:"status"`
	AddedAt   time.Time   `json:"added_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Score ranks pending entries: tier importance dominates, with each cross
// reference from other articles adding a small bonus.
func (e *Entry) Score() int {
	base := 20
	switch e.Tier {
	case 1:
		base = 100
	case 2:
		base = 80
	case 3:
		base = 60
	case 4:
		base = 40
	}
	return base + e.Mentions
}

// Registry is a persisted priority queue of entities awaiting generation.
// Entries discovered during scans are added here; the dispatcher pulls the
// highest-scoring pending entry when the in-run queue is empty.
type Registry struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Open loads a registry from path, creating an empty one if the file does not
// exist yet.
func Open(path string, opts ...Option) (*Registry, error) {
	r := &Registry{
		path:    path,
		entries: make(map[string]*Entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, types.WrapError(types.REGISTRY_FAILED, "failed to read registry file", err)
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, types.WrapError(types.REGISTRY_FAILED, "failed to parse registry file", err)
	}
	for _, e := range entries {
		r.entries[normalize(e.Name)] = e
	}

	return r, nil
}

// Add registers an entity. Re-adding a tracked entity bumps its mention count
// and may upgrade its tier, never the reverse. Adding never demotes a
// completed entry back to pending.
func (r *Registry) Add(name, category string, tier int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(name)
	now := time.Now().UTC()

	if e, ok := r.entries[key]; ok {
		e.Mentions++
		// A later sighting at a more important tier upgrades the entry.
		if tier > 0 && tier < e.Tier {
			e.Tier = tier
		}
		e.UpdatedAt = now
		return
	}

	r.entries[key] = &Entry{
		Name:      name,
		Category:  category,
		Tier:      tier,
		Status:    StatusPending,
		AddedAt:   now,
		UpdatedAt: now,
	}
}

// NextPending returns the highest-scoring pending entry, or nil if the queue
// is drained. Ties break alphabetically for determinism.
func (r *Registry) NextPending() *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *Entry
	for _, e := range r.entries {
		if e.Status != StatusPending {
			continue
		}
		if best == nil || e.Score() > best.Score() ||
			(e.Score() == best.Score() && e.Name < best.Name) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	clone := *best
	return &clone
}

// MarkComplete records that an entity's article has been generated.
func (r *Registry) MarkComplete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[normalize(name)]
	if !ok {
		return types.NewError(types.REGISTRY_FAILED,
			fmt.Sprintf("entity not in registry: %s", name))
	}
	e.Status = StatusComplete
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsComplete reports whether an entity already has a generated article.
func (r *Registry) IsComplete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[normalize(name)]
	return ok && e.Status == StatusComplete
}

// Contains reports whether an entity is tracked at all.
func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[normalize(name)]
	return ok
}

// Pending returns all pending entries in descending score order.
func (r *Registry) Pending() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for _, e := range r.entries {
		if e.Status == StatusPending {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the total number of tracked entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Save writes the registry to disk atomically via a temp file rename.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return types.WrapError(types.REGISTRY_FAILED, "failed to serialize registry", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return types.WrapError(types.REGISTRY_FAILED, "failed to create registry directory", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.WrapError(types.REGISTRY_FAILED, "failed to write registry file", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return types.WrapError(types.REGISTRY_FAILED, "failed to replace registry file", err)
	}

	r.logger.Debug("registry saved", "path", r.path, "entries", len(entries))
	return nil
}

// normalize gives entity names a case- and whitespace-insensitive key so
// "The Citadel" and "the citadel" are the same entry.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
