package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mojify/internal/embed"
	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/store"
)

// blockingSearcher holds every search until release is closed.
type blockingSearcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSearcher() *blockingSearcher {
	return &blockingSearcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingSearcher) Search(ctx context.Context, _ string, _ Options) ([]*Result, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return []*Result{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDispatcher_PassesResultsThrough(t *testing.T) {
	lex := &fakeLexical{hits: []*store.LexicalHit{lexHit(store.EntityAgent, "a1", "Launch Day")}}
	e, err := NewEngine(lex, &fakeEmbeddings{}, embed.Unavailable(embed.ErrUnavailable), DefaultEngineConfig())
	require.NoError(t, err)

	d, err := NewDispatcher(e, 2)
	require.NoError(t, err)
	defer d.Release()

	results, err := d.Search(context.Background(), "launch", Options{Types: []store.EntityType{store.EntityAgent}})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].EntityID)
	assert.Equal(t, 2, d.Cap())
}

func TestDispatcher_DefaultWorkers(t *testing.T) {
	d, err := NewDispatcher(newBlockingSearcher(), 0)
	require.NoError(t, err)
	defer d.Release()

	assert.GreaterOrEqual(t, d.Cap(), 1)
}

func TestDispatcher_CallerContextWins(t *testing.T) {
	// Given: a searcher that never finishes on its own
	s := newBlockingSearcher()
	d, err := NewDispatcher(s, 1)
	require.NoError(t, err)
	defer d.Release()
	defer close(s.release)

	// When: the caller gives up
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = d.Search(ctx, "launch", Options{})

	// Then: the caller gets its context error
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_QueuedCallerHonoursDeadline(t *testing.T) {
	// Given: the only worker is busy with a search that ignores deadlines
	s := newBlockingSearcher()
	d, err := NewDispatcher(s, 1)
	require.NoError(t, err)
	defer d.Release()

	first := make(chan error, 1)
	go func() {
		_, err := d.Search(context.Background(), "busy", Options{})
		first <- err
	}()
	<-s.started

	// When: a second caller queues with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = d.Search(ctx, "launch", Options{})

	// Then: it gives up at its deadline while the worker is still busy
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, d.Running())

	close(s.release)
	assert.NoError(t, <-first)
}

func TestDispatcher_QueuedCallerRunsWhenWorkerFrees(t *testing.T) {
	// Given: the only worker is busy
	s := newBlockingSearcher()
	d, err := NewDispatcher(s, 1)
	require.NoError(t, err)
	defer d.Release()

	go func() { _, _ = d.Search(context.Background(), "busy", Options{}) }()
	<-s.started

	// When: the worker frees up shortly after a second caller queues
	time.AfterFunc(30*time.Millisecond, func() { close(s.release) })
	results, err := d.Search(context.Background(), "launch", Options{})

	// Then: the queued search runs
	require.NoError(t, err)
	assert.NotNil(t, results)
}

func TestDispatcher_CancelledBeforeRunSkipsSearch(t *testing.T) {
	s := newBlockingSearcher()
	d, err := NewDispatcher(s, 1)
	require.NoError(t, err)
	defer d.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Search(ctx, "launch", Options{})

	assert.ErrorIs(t, err, context.Canceled)
	select {
	case <-s.started:
		t.Fatal("searcher should not run for a cancelled query")
	default:
	}
}

func TestDispatcher_ReleasedPoolRejects(t *testing.T) {
	d, err := NewDispatcher(newBlockingSearcher(), 1)
	require.NoError(t, err)
	d.Release()

	_, err = d.Search(context.Background(), "launch", Options{})

	require.Error(t, err)
	assert.Equal(t, mojierrors.ErrCodeSearchFailed, mojierrors.GetCode(err))
}
