package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a waiting rebuild polls the lock file.
const lockRetryDelay = 100 * time.Millisecond

// rebuildLock serializes rebuilds across processes sharing an index
// directory, e.g. `mojify index` run while `mojify serve` is up.
type rebuildLock struct {
	path  string
	flock *flock.Flock
}

func newRebuildLock(path string) *rebuildLock {
	return &rebuildLock{path: path, flock: flock.New(path)}
}

// acquire blocks until the lock is held or ctx is done.
func (l *rebuildLock) acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire rebuild lock %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire rebuild lock %s", l.path)
	}
	return nil
}

func (l *rebuildLock) release() error {
	return l.flock.Unlock()
}
