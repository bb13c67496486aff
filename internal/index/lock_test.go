package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rebuild.lock")
	lock := newRebuildLock(path)

	require.NoError(t, lock.acquire(context.Background()))
	assert.FileExists(t, path)
	require.NoError(t, lock.release())

	// Re-acquirable after release
	again := newRebuildLock(path)
	require.NoError(t, again.acquire(context.Background()))
	require.NoError(t, again.release())
}

func TestRebuildLock_WaitsForHolder(t *testing.T) {
	// Given: a lock held by another handle
	path := filepath.Join(t.TempDir(), "rebuild.lock")
	holder := newRebuildLock(path)
	require.NoError(t, holder.acquire(context.Background()))

	// When: a second handle tries with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := newRebuildLock(path).acquire(ctx)

	// Then: it gives up when the context does
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, holder.release())
}

func TestRebuildLock_AcquiredOnceReleased(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rebuild.lock")
	holder := newRebuildLock(path)
	require.NoError(t, holder.acquire(context.Background()))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.release()
	}()

	waiter := newRebuildLock(path)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, waiter.acquire(ctx))
	require.NoError(t, waiter.release())
}
