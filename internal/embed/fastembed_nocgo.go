//go:build !cgo

package embed

import (
	"context"
	"errors"
)

// FastEmbedAvailable reports whether this binary can load local ONNX models.
const FastEmbedAvailable = false

// ErrFastEmbedNotAvailable is returned by binaries built without cgo.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the ollama or static provider)")

// FastEmbedConfig configures the local ONNX embedder.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedEmbedder is a stub for non-cgo builds.
type FastEmbedEmbedder struct{}

var _ Embedder = (*FastEmbedEmbedder)(nil)

// NewFastEmbedEmbedder always fails without cgo.
func NewFastEmbedEmbedder(_ FastEmbedConfig) (*FastEmbedEmbedder, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbedEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbedEmbedder) Dimensions() int  { return 0 }
func (e *FastEmbedEmbedder) ModelName() string { return DefaultModel }
func (e *FastEmbedEmbedder) Close() error      { return nil }
