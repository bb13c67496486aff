package embed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Load-once behavior
// =============================================================================

func TestCapability_LoadsOnceAndCachesSuccess(t *testing.T) {
	// Given: a loader that counts invocations
	var loads atomic.Int32
	mock := newMockEmbedder(8)
	c := NewCapability(func(context.Context) (Embedder, error) {
		loads.Add(1)
		return mock, nil
	})

	// When: embedding twice
	v1, ok1 := c.Embed(context.Background(), "hello")
	v2, ok2 := c.Embed(context.Background(), "world!")

	// Then: both succeed and the loader ran once
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Len(t, v1, 8)
	assert.Len(t, v2, 8)
	assert.Equal(t, int32(1), loads.Load())
}

func TestCapability_CachesUnavailability(t *testing.T) {
	// Given: a loader that fails
	var loads atomic.Int32
	c := NewCapability(func(context.Context) (Embedder, error) {
		loads.Add(1)
		return nil, errBoom
	})

	// When: calling several times
	for range 3 {
		vec, ok := c.Embed(context.Background(), "hello")
		assert.False(t, ok)
		assert.Nil(t, vec)
	}

	// Then: the failed load is not retried
	assert.Equal(t, int32(1), loads.Load())
	st := c.Status()
	assert.True(t, st.Resolved)
	assert.False(t, st.Available)
	assert.Equal(t, "boom", st.Reason)
}

func TestCapability_NilEmbedderWithoutErrorIsUnavailable(t *testing.T) {
	c := NewCapability(func(context.Context) (Embedder, error) { return nil, nil })

	_, ok := c.Embedder(context.Background())

	assert.False(t, ok)
	assert.Equal(t, ErrUnavailable.Error(), c.Status().Reason)
}

func TestCapability_CancelledLoadIsNotCached(t *testing.T) {
	// Given: a loader that fails only because its context is cancelled
	var loads atomic.Int32
	mock := newMockEmbedder(4)
	c := NewCapability(func(ctx context.Context) (Embedder, error) {
		loads.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return mock, nil
	})
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// When: the first call is cancelled and the second is not
	_, ok := c.Embedder(cancelled)
	require.False(t, ok)
	assert.False(t, c.Status().Resolved)

	e, ok := c.Embedder(context.Background())

	// Then: the second call loads the model
	require.True(t, ok)
	assert.Same(t, mock, e)
	assert.Equal(t, int32(2), loads.Load())
}

func TestCapability_ConcurrentFirstCallsKeepOneEmbedder(t *testing.T) {
	// Given: a loader that hands out a fresh embedder per call
	var (
		mu      sync.Mutex
		created []*mockEmbedder
	)
	start := make(chan struct{})
	c := NewCapability(func(context.Context) (Embedder, error) {
		<-start
		m := newMockEmbedder(4)
		mu.Lock()
		created = append(created, m)
		mu.Unlock()
		return m, nil
	})

	// When: many goroutines race on the first call
	const n = 16
	got := make([]Embedder, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, ok := c.Embedder(context.Background())
			assert.True(t, ok)
			got[i] = e
		}()
	}
	close(start)
	wg.Wait()

	// Then: every caller sees the same embedder and the losers were closed
	for _, e := range got {
		assert.Same(t, got[0], e)
	}
	for _, m := range created {
		if Embedder(m) == got[0] {
			assert.False(t, m.closed.Load())
		} else {
			assert.True(t, m.closed.Load())
		}
	}
}

// =============================================================================
// Per-call failures
// =============================================================================

func TestCapability_EmbedFailureDoesNotDisableCapability(t *testing.T) {
	// Given: an available embedder whose next call fails
	mock := newMockEmbedder(4)
	c := Available(mock)
	mock.err = errBoom

	// When: the call fails
	_, ok := c.Embed(context.Background(), "hello")
	require.False(t, ok)

	// Then: the capability stays available and later calls succeed
	assert.True(t, c.Status().Available)
	mock.err = nil
	vec, ok := c.Embed(context.Background(), "hello")
	assert.True(t, ok)
	assert.Len(t, vec, 4)
}

func TestCapability_EmptyVectorIsAFailure(t *testing.T) {
	c := Available(newMockEmbedder(0))

	vec, ok := c.Embed(context.Background(), "hello")

	assert.False(t, ok)
	assert.Nil(t, vec)
}

func TestUnavailable_NeverProducesVectors(t *testing.T) {
	c := Unavailable(errors.New("no model"))

	vec, ok := c.Embed(context.Background(), "hello")

	assert.False(t, ok)
	assert.Nil(t, vec)
	assert.Equal(t, Status{Resolved: true, Reason: "no model"}, c.Status())
	assert.NoError(t, c.Close())
}

func TestCapability_StatusDoesNotLoad(t *testing.T) {
	var loads atomic.Int32
	c := NewCapability(func(context.Context) (Embedder, error) {
		loads.Add(1)
		return newMockEmbedder(4), nil
	})

	st := c.Status()

	assert.Equal(t, Status{}, st)
	assert.Zero(t, loads.Load())
}

func TestCapability_StatusReportsModel(t *testing.T) {
	c := Available(NewStaticEmbedder())

	st := c.Status()

	assert.Equal(t, Status{Resolved: true, Available: true, Model: "static", Dimensions: StaticDimensions}, st)
}

func TestCapability_CloseClosesEmbedder(t *testing.T) {
	mock := newMockEmbedder(4)
	c := Available(mock)

	require.NoError(t, c.Close())

	assert.True(t, mock.closed.Load())
}
