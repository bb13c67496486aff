package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aman-CERP/mojify/internal/config"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderFastEmbed runs all-MiniLM-L6-v2 in process (requires cgo).
	ProviderFastEmbed ProviderType = "fastembed"

	// ProviderOllama calls a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based vectors.
	ProviderStatic ProviderType = "static"

	// ProviderNone disables semantic ranking.
	ProviderNone ProviderType = "none"
)

// ErrDisabled is the unavailability reason for the "none" provider.
var ErrDisabled = errors.New("embeddings disabled by configuration")

// NewLoader returns the Loader for the configured provider. Model loading is
// deferred until the Loader runs, and any failure there makes the capability
// unavailable rather than failing the caller. Unless the cache size is
// negative the result is wrapped in a CachedEmbedder.
func NewLoader(c *config.Config) Loader {
	cfg := c.Embeddings
	timeout := c.EmbedTimeout()

	var load Loader
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderNone:
		return func(context.Context) (Embedder, error) { return nil, ErrDisabled }
	case ProviderStatic:
		load = func(context.Context) (Embedder, error) { return NewStaticEmbedder(), nil }
	case ProviderOllama:
		load = func(ctx context.Context) (Embedder, error) {
			return NewOllamaEmbedder(ctx, OllamaConfig{
				Host:    cfg.OllamaHost,
				Model:   cfg.Model,
				Timeout: timeout,
			})
		}
	case ProviderFastEmbed, "":
		load = func(context.Context) (Embedder, error) {
			return loadFastEmbed(cfg)
		}
	default:
		return func(context.Context) (Embedder, error) {
			return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
		}
	}

	if cfg.CacheSize < 0 {
		return load
	}
	return func(ctx context.Context) (Embedder, error) {
		e, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
}

// loadFastEmbed holds the cache directory lock while the model is loaded,
// since the first load downloads it.
func loadFastEmbed(cfg config.EmbeddingsConfig) (Embedder, error) {
	if !FastEmbedAvailable {
		return NewFastEmbedEmbedder(FastEmbedConfig{})
	}

	lock := NewFileLock(cfg.CacheDir)
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	return NewFastEmbedEmbedder(FastEmbedConfig{
		Model:    cfg.Model,
		CacheDir: cfg.CacheDir,
	})
}
