package async

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/index"
)

// RunFunc performs one rebuild. index.Indexer.Run satisfies it; tests
// inject their own.
type RunFunc func(ctx context.Context, opts index.RunOptions) (*index.Result, error)

// Rebuilder runs at most one rebuild at a time in a background goroutine
// with progress tracking.
type Rebuilder struct {
	run    RunFunc
	logger *slog.Logger

	mu       sync.Mutex
	progress *Progress
	cancel   context.CancelFunc
	doneCh   chan struct{}
	err      error
}

// NewRebuilder creates a Rebuilder around run.
func NewRebuilder(run RunFunc, logger *slog.Logger) *Rebuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{run: run, logger: logger}
}

// Start begins a rebuild in a background goroutine and returns its initial
// snapshot. It is non-blocking. While a rebuild is running, Start returns
// a RebuildInProgress error carrying the running run's id.
func (r *Rebuilder) Start(ctx context.Context) (ProgressSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress != nil && r.progress.IsRunning() {
		snap := r.progress.Snapshot()
		return snap, mojierrors.New(mojierrors.ErrCodeRebuildInProgress, "a rebuild is already running", nil).
			WithDetail("run_id", snap.RunID)
	}

	runID := uuid.NewString()
	progress := NewProgress(runID)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.progress = progress
	r.cancel = cancel
	r.doneCh = done
	r.err = nil

	go r.execute(runCtx, cancel, runID, progress, done)
	return progress.Snapshot(), nil
}

func (r *Rebuilder) execute(ctx context.Context, cancel context.CancelFunc, runID string, progress *Progress, done chan struct{}) {
	defer close(done)
	defer cancel()

	res, err := r.run(ctx, index.RunOptions{ID: runID, Progress: progress.Observe})

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()

	if err != nil {
		progress.SetError(err.Error())
		r.logger.Warn("background_rebuild_failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
		return
	}
	progress.SetResult(res)
}

// Status returns the snapshot of the current or last rebuild.
func (r *Rebuilder) Status() ProgressSnapshot {
	r.mu.Lock()
	progress := r.progress
	r.mu.Unlock()

	if progress == nil {
		return ProgressSnapshot{Status: string(StatusIdle)}
	}
	return progress.Snapshot()
}

// IsRunning returns true if a rebuild is in progress.
func (r *Rebuilder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress != nil && r.progress.IsRunning()
}

// Wait blocks until the current rebuild completes and returns its error.
// It returns nil at once when nothing was started.
func (r *Rebuilder) Wait() error {
	r.mu.Lock()
	done := r.doneCh
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stop cancels the running rebuild, if any, and waits for it to finish.
func (r *Rebuilder) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.doneCh
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
