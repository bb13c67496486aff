//go:build cgo

package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedAvailable reports whether this binary can load local ONNX models.
const FastEmbedAvailable = true

// fastEmbedModels maps accepted model names to fastembed models.
var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"all-minilm-l6-v2":                       fastembed.AllMiniLML6V2,
	"sentence-transformers/all-minilm-l6-v2": fastembed.AllMiniLML6V2,
	"fast-all-minilm-l6-v2":                  fastembed.AllMiniLML6V2,
	"bge-small-en-v1.5":                      fastembed.BGESmallENV15,
	"baai/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
}

var fastEmbedDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: MiniLMDimensions,
	fastembed.BGESmallENV15: 384,
}

// FastEmbedConfig configures the local ONNX embedder.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedEmbedder runs a sentence-transformer model in process.
type FastEmbedEmbedder struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	modelName string
	dims      int
}

var _ Embedder = (*FastEmbedEmbedder)(nil)

// NewFastEmbedEmbedder loads the model, downloading it into CacheDir on
// first use.
func NewFastEmbedEmbedder(cfg FastEmbedConfig) (*FastEmbedEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	model, ok := fastEmbedModels[strings.ToLower(cfg.Model)]
	if !ok {
		return nil, fmt.Errorf("unsupported fastembed model %q", cfg.Model)
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 256
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedEmbedder{
		model:     flag,
		modelName: cfg.Model,
		dims:      fastEmbedDimensions[model],
	}, nil
}

// Embed generates the embedding for text.
func (e *FastEmbedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts. The ONNX session is not
// goroutine-safe, so calls are serialized.
func (e *FastEmbedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil, fmt.Errorf("embedder is closed")
	}

	vecs, err := e.model.Embed(texts, 32)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	for i, v := range vecs {
		vecs[i] = normalizeVector(v)
	}
	return vecs, nil
}

// Dimensions returns the model output size.
func (e *FastEmbedEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model name.
func (e *FastEmbedEmbedder) ModelName() string { return e.modelName }

// Close destroys the ONNX session.
func (e *FastEmbedEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
