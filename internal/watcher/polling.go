package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// runPolling compares the catalog files' size and modification time every
// PollInterval.
func (w *CatalogWatcher) runPolling(ctx context.Context) error {
	state := w.snapshot()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			next := w.snapshot()
			for _, e := range diffSnapshots(state, next, time.Now()) {
				w.debouncer.Add(e)
			}
			state = next
		}
	}
}

func (w *CatalogWatcher) snapshot() map[string]fileSnapshot {
	out := make(map[string]fileSnapshot, len(w.names))
	for name := range w.names {
		info, err := os.Stat(filepath.Join(w.dir, name))
		if err != nil {
			if !os.IsNotExist(err) {
				w.emitError(err)
			}
			continue
		}
		out[name] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return out
}

// diffSnapshots reports files that appeared, disappeared or changed.
func diffSnapshots(prev, next map[string]fileSnapshot, now time.Time) []FileEvent {
	var events []FileEvent
	for name, cur := range next {
		old, ok := prev[name]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: name, Operation: OpCreate, Timestamp: now})
		case !old.modTime.Equal(cur.modTime) || old.size != cur.size:
			events = append(events, FileEvent{Path: name, Operation: OpModify, Timestamp: now})
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			events = append(events, FileEvent{Path: name, Operation: OpDelete, Timestamp: now})
		}
	}
	return events
}
