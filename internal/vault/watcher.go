package vault

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Watcher monitors a drop directory for hand-written markdown files, stamps
// them with frontmatter, and moves them into the vault's sync directory so
// the next ingestion pass picks them up.
type Watcher struct {
	dropDir string
	syncDir string
	vault   *Vault
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a Watcher moving files from dropDir into the vault's
// syncDir (a vault-relative directory name).
func NewWatcher(v *Vault, dropDir, syncDir string, opts ...WatcherOption) (*Watcher, error) {
	if dropDir == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "drop directory cannot be empty")
	}
	w := &Watcher{
		dropDir: dropDir,
		syncDir: syncDir,
		vault:   v,
		logger:  slog.Default(),
		pending: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// debounceWindow is how long a file must be quiet before processing; editors
// write in bursts.
const debounceWindow = 500 * time.Millisecond

// Run watches the drop directory until the context is cancelled. Existing
// files in the drop directory are processed on startup.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dropDir, 0o755); err != nil {
		return types.WrapError(types.VAULT_WRITE_FAILED, "failed to create drop directory", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return types.WrapError(types.VAULT_WRITE_FAILED, "failed to create file watcher", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dropDir); err != nil {
		return types.WrapError(types.VAULT_WRITE_FAILED, "failed to watch drop directory", err)
	}

	w.processExisting()

	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	w.logger.Info("watching drop directory", "dir", w.dropDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)

		case <-ticker.C:
			w.flushQuiet()
		}
	}
}

// processExisting sweeps files already sitting in the drop directory.
func (w *Watcher) processExisting() {
	entries, err := os.ReadDir(w.dropDir)
	if err != nil {
		w.logger.Error("failed to read drop directory", "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if err := w.process(filepath.Join(w.dropDir, e.Name())); err != nil {
			w.logger.Error("failed to process dropped file", "file", e.Name(), "error", err)
		}
	}
}

// flushQuiet processes pending files whose last event is older than the
// debounce window.
func (w *Watcher) flushQuiet() {
	w.mu.Lock()
	var ready []string
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) >= debounceWindow {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if err := w.process(path); err != nil {
			w.logger.Error("failed to process dropped file", "file", path, "error", err)
		}
	}
}

// process stamps a dropped file and moves it into the sync directory under a
// sanitized name.
func (w *Watcher) process(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.WrapError(types.VAULT_WRITE_FAILED, "failed to read dropped file", err)
	}

	fm, body := ParseFrontmatter(string(data))
	if fm.Title == "" {
		fm.Title = titleFromFilename(path)
	}
	if fm.Status == "" {
		fm.Status = StatusGenerated
	}

	stamped, err := Stamp(body, fm)
	if err != nil {
		return err
	}

	rel := filepath.Join(w.syncDir, Slug(fm.Title)+".md")
	dest, err := w.vault.SafeWrite(rel, []byte(stamped))
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove dropped file after sync", "file", path, "error", err)
	}

	w.logger.Info("synced dropped file", "from", path, "to", dest)
	return nil
}

// titleFromFilename derives a human title from a file name: hyphens and
// underscores become spaces.
func titleFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".md")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(name)
}
