package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CatalogWatcher emits debounced batches of changes to a SQLite catalog
// file and its journal/WAL siblings.
type CatalogWatcher struct {
	dir       string
	names     map[string]bool
	opts      Options
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}

	mu      sync.Mutex
	stopped bool
	polling bool
}

// NewCatalogWatcher creates a watcher for the database at dbPath. The
// directory must exist; the file itself may appear later.
func NewCatalogWatcher(dbPath string, opts Options) (*CatalogWatcher, error) {
	opts = opts.WithDefaults()

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	dir := filepath.Dir(absPath)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog directory %s is not a directory", dir)
	}

	base := filepath.Base(absPath)
	w := &CatalogWatcher{
		dir: dir,
		names: map[string]bool{
			base:              true,
			base + "-wal":     true,
			base + "-journal": true,
		},
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		polling:   opts.ForcePolling,
	}

	if !w.polling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("watcher_fsnotify_unavailable",
				slog.String("error", err.Error()),
				slog.Duration("poll_interval", opts.PollInterval))
			w.polling = true
		} else {
			w.fsWatcher = fsw
		}
	}
	return w, nil
}

// Start watches until ctx is cancelled or Stop is called. It blocks.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	if w.Polling() {
		return w.runPolling(ctx)
	}
	if err := w.fsWatcher.Add(w.dir); err != nil {
		slog.Warn("watcher_fsnotify_add_failed",
			slog.String("dir", w.dir),
			slog.String("error", err.Error()))
		w.mu.Lock()
		w.polling = true
		w.mu.Unlock()
		return w.runPolling(ctx)
	}
	return w.runFsnotify(ctx)
}

func (w *CatalogWatcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleFsnotifyEvent keeps events for catalog files and converts them.
func (w *CatalogWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !w.names[name] {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: name, Operation: op, Timestamp: time.Now()})
}

// Events returns the channel of debounced batches. It is closed by Stop.
func (w *CatalogWatcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors; the watcher keeps running.
func (w *CatalogWatcher) Errors() <-chan error {
	return w.errors
}

// Polling reports whether the watcher uses the polling fallback.
func (w *CatalogWatcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *CatalogWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()

	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *CatalogWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		slog.Warn("watcher_error_dropped", slog.String("error", err.Error()))
	}
}

// OnChange calls fn for every batch until events is closed or ctx is done.
func OnChange(ctx context.Context, events <-chan []FileEvent, fn func([]FileEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			if len(batch) > 0 {
				fn(batch)
			}
		}
	}
}
