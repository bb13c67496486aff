package search

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// Dispatcher runs searches on a bounded worker pool so request handlers
// never run the similarity scan on their own goroutine. The caller waits
// for the result or for its context, whichever comes first.
// submitRetryInterval is how long a query waits for a free worker before
// trying again.
const submitRetryInterval = 5 * time.Millisecond

type Dispatcher struct {
	pool     *ants.Pool
	searcher Searcher
}

var _ Searcher = (*Dispatcher)(nil)

// NewDispatcher creates a pool of workers goroutines over searcher.
// Default is runtime.NumCPU(), with a minimum of 1.
func NewDispatcher(searcher Searcher, workers int) (*Dispatcher, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, searcher: searcher}, nil
}

type searchOutcome struct {
	results []*Result
	err     error
}

// Search submits the query to the pool and waits. While every worker is
// busy the query stays queued until a worker frees up or ctx is done.
func (d *Dispatcher) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	done := make(chan searchOutcome, 1)
	task := func() {
		if ctx.Err() != nil {
			done <- searchOutcome{err: ctx.Err()}
			return
		}
		results, err := d.searcher.Search(ctx, query, opts)
		done <- searchOutcome{results: results, err: err}
	}
	if err := d.submit(ctx, task); err != nil {
		return nil, err
	}

	select {
	case out := <-done:
		return out.results, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) submit(ctx context.Context, task func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.pool.Submit(task)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ants.ErrPoolOverload) {
			return mojierrors.New(mojierrors.ErrCodeSearchFailed, "search pool rejected query", err)
		}

		timer := time.NewTimer(submitRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Running returns the number of busy workers.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Cap returns the pool size.
func (d *Dispatcher) Cap() int {
	return d.pool.Cap()
}

// Release stops the pool. Searches submitted afterwards fail.
func (d *Dispatcher) Release() {
	d.pool.Release()
}
