package embed

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Loader produces an Embedder or reports why none is available.
type Loader func(ctx context.Context) (Embedder, error)

// Capability is the process-wide embedding capability. The first call
// attempts to load a model; the outcome (available or not) is recorded once
// and never reset, so an unavailable model costs nothing on later calls.
//
// Callers that race on the very first call may each run the loader. Exactly
// one result is kept and the other embedders are closed.
type Capability struct {
	load   Loader
	logger *slog.Logger
	state  atomic.Pointer[capabilityState]
}

type capabilityState struct {
	embedder Embedder // nil when unavailable
	reason   error
}

// CapabilityOption configures a Capability.
type CapabilityOption func(*Capability)

// WithLogger sets the logger used for availability events.
func WithLogger(logger *slog.Logger) CapabilityOption {
	return func(c *Capability) {
		c.logger = logger
	}
}

// NewCapability wraps load. Nothing is loaded until first use.
func NewCapability(load Loader, opts ...CapabilityOption) *Capability {
	c := &Capability{load: load, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Unavailable returns a Capability that never produces vectors.
func Unavailable(reason error) *Capability {
	c := &Capability{logger: slog.Default()}
	c.state.Store(&capabilityState{reason: reason})
	return c
}

// Available returns a Capability already resolved to e.
func Available(e Embedder) *Capability {
	c := &Capability{logger: slog.Default()}
	c.state.Store(&capabilityState{embedder: e})
	return c
}

func (c *Capability) resolve(ctx context.Context) *capabilityState {
	if s := c.state.Load(); s != nil {
		return s
	}

	e, err := c.load(ctx)
	if e == nil && err == nil {
		err = ErrUnavailable
	}
	if e == nil && ctx.Err() != nil {
		// A cancelled caller says nothing about the model; leave the
		// decision to the next call.
		return &capabilityState{reason: ctx.Err()}
	}

	s := &capabilityState{embedder: e, reason: err}
	if c.state.CompareAndSwap(nil, s) {
		if e != nil {
			c.logger.Info("embedder_available",
				slog.String("model", e.ModelName()),
				slog.Int("dimensions", e.Dimensions()))
		} else {
			c.logger.Warn("embedder_unavailable",
				slog.String("reason", err.Error()),
				slog.String("effect", "semantic ranking disabled, lexical only"))
		}
		return s
	}

	if e != nil {
		_ = e.Close()
	}
	return c.state.Load()
}

// Embedder returns the loaded embedder, loading it on first use.
func (c *Capability) Embedder(ctx context.Context) (Embedder, bool) {
	s := c.resolve(ctx)
	return s.embedder, s.embedder != nil
}

// Embed returns the vector for text, or (nil, false) when the capability is
// unavailable or this particular call failed. A failed call does not mark
// the capability unavailable.
func (c *Capability) Embed(ctx context.Context, text string) ([]float32, bool) {
	e, ok := c.Embedder(ctx)
	if !ok {
		return nil, false
	}
	vec, err := e.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("embed_failed",
				slog.String("model", e.ModelName()),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	if len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// Status describes the capability without triggering a load.
type Status struct {
	Resolved   bool   `json:"resolved"`
	Available  bool   `json:"available"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Status reports the recorded availability, if any.
func (c *Capability) Status() Status {
	s := c.state.Load()
	if s == nil {
		return Status{}
	}
	if s.embedder == nil {
		st := Status{Resolved: true}
		if s.reason != nil {
			st.Reason = s.reason.Error()
		}
		return st
	}
	return Status{
		Resolved:   true,
		Available:  true,
		Model:      s.embedder.ModelName(),
		Dimensions: s.embedder.Dimensions(),
	}
}

// Close releases the loaded embedder, if any. The capability stays resolved.
func (c *Capability) Close() error {
	if s := c.state.Load(); s != nil && s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}
