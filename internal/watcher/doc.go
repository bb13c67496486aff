// Package watcher notices writes to the catalog database so the search index
// can be rebuilt after the voting backend changes it.
//
// The catalog is a single SQLite file. Writers touch the main file, its
// rollback journal or its write-ahead log, so the watcher observes the
// containing directory and keeps only events for those three names:
//   - Primary: fsnotify on the catalog's directory
//   - Fallback: polling the three files' size and modification time, for
//     filesystems where fsnotify is unavailable (network mounts, some
//     container volumes)
//
// Events are debounced so a burst of writes yields one batch.
//
// Usage:
//
//	w, err := watcher.NewCatalogWatcher("mojify.db", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx)
//	watcher.OnChange(ctx, w.Events(), func(batch []watcher.FileEvent) {
//	    // rebuild
//	})
package watcher
