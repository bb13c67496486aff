package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/index"
)

func quickRun(entities int) RunFunc {
	return func(_ context.Context, opts index.RunOptions) (*index.Result, error) {
		opts.Progress(index.ProgressEvent{Stage: index.StageIndexing, Current: entities, Total: entities})
		return &index.Result{RunID: opts.ID, Entities: entities}, nil
	}
}

// gatedRun blocks until release is closed or its context is cancelled.
func gatedRun(release <-chan struct{}) RunFunc {
	return func(ctx context.Context, opts index.RunOptions) (*index.Result, error) {
		select {
		case <-release:
			return &index.Result{RunID: opts.ID, Entities: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestRebuilder_IdleStatus(t *testing.T) {
	r := NewRebuilder(quickRun(0), nil)

	snap := r.Status()

	assert.Equal(t, string(StatusIdle), snap.Status)
	assert.False(t, r.IsRunning())
	assert.NoError(t, r.Wait())
}

func TestRebuilder_Start_RunsInBackground(t *testing.T) {
	// Given: a rebuild that reports progress
	var calls atomic.Int32
	run := func(ctx context.Context, opts index.RunOptions) (*index.Result, error) {
		calls.Add(1)
		return quickRun(4)(ctx, opts)
	}
	r := NewRebuilder(run, nil)

	// When: starting and waiting
	snap, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Wait())

	// Then: the run id is a UUID and the result is recorded
	assert.Len(t, snap.RunID, 36)
	final := r.Status()
	assert.Equal(t, snap.RunID, final.RunID)
	assert.Equal(t, string(StatusReady), final.Status)
	assert.Equal(t, 4, final.Entities)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, r.IsRunning())
}

func TestRebuilder_Start_RejectsSecondRun(t *testing.T) {
	// Given: a running rebuild
	release := make(chan struct{})
	r := NewRebuilder(gatedRun(release), nil)
	first, err := r.Start(context.Background())
	require.NoError(t, err)

	// When: starting another
	second, err := r.Start(context.Background())

	// Then: it is refused with the running id
	require.Error(t, err)
	assert.Equal(t, mojierrors.ErrCodeRebuildInProgress, mojierrors.GetCode(err))
	assert.True(t, mojierrors.IsRetryable(err))
	assert.Equal(t, first.RunID, second.RunID)
	assert.True(t, r.IsRunning())

	close(release)
	require.NoError(t, r.Wait())
}

func TestRebuilder_Start_AllowedAfterCompletion(t *testing.T) {
	r := NewRebuilder(quickRun(1), nil)

	first, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Wait())
	second, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Wait())

	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRebuilder_Failure(t *testing.T) {
	boom := errors.New("catalog unreachable")
	r := NewRebuilder(func(context.Context, index.RunOptions) (*index.Result, error) {
		return nil, boom
	}, nil)

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, r.Wait(), boom)
	snap := r.Status()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "catalog unreachable", snap.ErrorMessage)
}

func TestRebuilder_Stop_CancelsRun(t *testing.T) {
	// Given: a rebuild that never finishes on its own
	r := NewRebuilder(gatedRun(make(chan struct{})), nil)
	_, err := r.Start(context.Background())
	require.NoError(t, err)

	// When: stopping
	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	// Then: Stop returns and the run reports cancellation
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, r.Wait(), context.Canceled)
	assert.Equal(t, string(StatusError), r.Status().Status)
}

func TestRebuilder_Stop_WithoutRun(t *testing.T) {
	r := NewRebuilder(quickRun(0), nil)

	assert.NotPanics(t, r.Stop)
}
