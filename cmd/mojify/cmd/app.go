package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/catalog"
	"github.com/Aman-CERP/mojify/internal/config"
	"github.com/Aman-CERP/mojify/internal/embed"
	"github.com/Aman-CERP/mojify/internal/index"
	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/store"
	"github.com/Aman-CERP/mojify/internal/telemetry"
)

// catalogMode says whether a command needs the voting backend database.
type catalogMode int

const (
	// catalogSkip never opens the catalog.
	catalogSkip catalogMode = iota
	// catalogOptional opens it when present; search uses it to attach
	// parent prompt ids to proposals.
	catalogOptional
	// catalogRequired fails when it is missing. Rebuilds read from it.
	catalogRequired
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	stores     *store.Stores
	catalog    *catalog.Store // nil when not opened
	capability *embed.Capability
	metrics    *telemetry.QueryMetrics
	engine     *search.Engine
	dispatcher *search.Dispatcher
	indexer    *index.Indexer // nil without a catalog
}

// loadConfig loads configuration for dir and anchors relative storage paths
// to it.
func loadConfig(dir string) (*config.Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	cfg.Storage.CatalogPath = resolvePath(abs, cfg.Storage.CatalogPath)
	cfg.Storage.DataDir = resolvePath(abs, cfg.Storage.DataDir)
	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// openApp opens the index stores and, per mode, the catalog, then builds the
// search engine and the indexer. Close releases everything.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, mode catalogMode) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	stores, err := store.Open(store.Options{
		DBPath:        cfg.IndexDBPath(),
		BlevePath:     cfg.BlevePath(),
		Backend:       store.LexicalBackend(cfg.Storage.LexicalBackend),
		SnippetTokens: cfg.Search.SnippetTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, stores: stores}

	if mode != catalogSkip {
		cat, err := catalog.Open(ctx, cfg.Storage.CatalogPath)
		switch {
		case err == nil:
			a.catalog = cat
		case mode == catalogOptional:
			logger.Warn("catalog_unavailable",
				slog.String("path", cfg.Storage.CatalogPath),
				slog.String("error", err.Error()))
		default:
			_ = a.Close()
			return nil, err
		}
	}

	a.capability = embed.NewCapability(embed.NewLoader(cfg), embed.WithLogger(logger))
	a.metrics = telemetry.NewQueryMetrics()

	a.engine, err = search.NewEngine(stores.Lexical, stores.Embeddings, a.capability,
		search.EngineConfigFrom(cfg.Search),
		search.WithMetrics(a.metrics),
		search.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.dispatcher, err = search.NewDispatcher(a.engine, cfg.Search.Workers)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create search pool: %w", err)
	}

	if a.catalog != nil {
		a.indexer, err = index.NewIndexer(index.Dependencies{
			Source:     a.catalog,
			Lexical:    stores.Lexical,
			Embeddings: stores.Embeddings,
			Capability: a.capability,
			Runs:       stores.Runs,
		}, index.Config{
			Workers:  cfg.Embeddings.IndexWorkers,
			LockPath: cfg.RebuildLockPath(),
			Backend:  string(stores.Backend),
		}, index.WithLogger(logger))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// resolveEmbedder forces the capability decision and publishes it.
func (a *app) resolveEmbedder(ctx context.Context) embed.Status {
	_, ok := a.capability.Embedder(ctx)
	telemetry.SetEmbedderAvailable(ok)
	return a.capability.Status()
}

// rebuilder wraps the indexer for background rebuilds. Nil without a catalog.
func (a *app) rebuilder() *async.Rebuilder {
	if a.indexer == nil {
		return nil
	}
	return async.NewRebuilder(a.indexer.Run, a.logger)
}

// parents returns the catalog as a proposal lookup, or nil.
func (a *app) parents() parentLookup {
	if a.catalog == nil {
		return nil
	}
	return a.catalog
}

// Close releases pools, the embedder and the stores.
func (a *app) Close() error {
	if a.indexer != nil {
		a.indexer.Release()
	}
	if a.dispatcher != nil {
		a.dispatcher.Release()
	}
	var errs []error
	if a.capability != nil {
		errs = append(errs, a.capability.Close())
	}
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	errs = append(errs, a.stores.Close())
	return errors.Join(errs...)
}

type parentLookup interface {
	ParentPromptIDs(ctx context.Context, proposalIDs []string) (map[string]string, error)
}

// attachPromptIDs sets PromptID on proposal results. Lookup failures are
// logged and leave the results unchanged.
func attachPromptIDs(ctx context.Context, parents parentLookup, results []*search.Result, logger *slog.Logger) {
	if parents == nil {
		return
	}
	var ids []string
	for _, r := range results {
		if r.EntityType == store.EntityProposal {
			ids = append(ids, r.EntityID)
		}
	}
	if len(ids) == 0 {
		return
	}
	byID, err := parents.ParentPromptIDs(ctx, ids)
	if err != nil {
		logger.Warn("prompt_lookup_failed", slog.String("error", err.Error()))
		return
	}
	for _, r := range results {
		if r.EntityType == store.EntityProposal {
			r.PromptID = byID[r.EntityID]
		}
	}
}
