// Package embed provides the semantic embedding capability: text in,
// fixed-length vector out, or a report that no model could be loaded.
package embed

import (
	"context"
	"errors"
	"math"
)

const (
	// MiniLMDimensions is the output size of all-MiniLM-L6-v2.
	MiniLMDimensions = 384

	// StaticDimensions is the output size of the hash-based embedder.
	StaticDimensions = 256

	// DefaultModel is the local model used by the fastembed provider.
	DefaultModel = "all-MiniLM-L6-v2"
)

// ErrUnavailable reports that no embedding model could be loaded.
var ErrUnavailable = errors.New("embedding model unavailable")

// Embedder generates vector embeddings for text. Every vector an Embedder
// returns has Dimensions() elements.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
