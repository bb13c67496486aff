package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/mojify/internal/catalog"
	"github.com/Aman-CERP/mojify/internal/store"
)

// embedderTimeout bounds the model load in CheckEmbedder.
const embedderTimeout = 2 * time.Minute

// CheckCatalog opens the voting backend database and counts its entities.
func (c *Checker) CheckCatalog(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "catalog",
		Required: true,
		Details:  fmt.Sprintf("Catalog: %s", c.cfg.Storage.CatalogPath),
	}

	cat, err := catalog.Open(ctx, c.cfg.Storage.CatalogPath)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = cat.Close() }()

	counts, err := cat.Counts(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unexpected schema: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d prompts, %d agents, %d proposals",
		counts["prompts"], counts["agents"], counts["proposals"])
	return result
}

// CheckIndex reports whether the search index exists and how the last
// rebuild went. A missing index only warns: search returns nothing until
// the first rebuild.
func (c *Checker) CheckIndex(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:    "index",
		Details: fmt.Sprintf("Index: %s", c.cfg.IndexDBPath()),
	}

	if !store.Exists(c.cfg.IndexDBPath()) {
		result.Status = StatusWarn
		result.Message = "no index yet (run 'mojify index')"
		return result
	}

	stores, err := store.Open(store.Options{
		DBPath:    c.cfg.IndexDBPath(),
		BlevePath: c.cfg.BlevePath(),
		Backend:   store.LexicalBackend(c.cfg.Storage.LexicalBackend),
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open index: %v", err)
		return result
	}
	defer func() { _ = stores.Close() }()

	entries, err := stores.Lexical.Count(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read index: %v", err)
		return result
	}
	embedded, err := stores.Embeddings.Count(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read embeddings: %v", err)
		return result
	}
	run, err := stores.Runs.Last(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read rebuild history: %v", err)
		return result
	}

	switch {
	case run == nil:
		result.Status = StatusWarn
		result.Message = "index was never rebuilt (run 'mojify index')"
	case run.Error != "":
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("last rebuild failed: %s", run.Error)
	case run.FinishedAt.IsZero():
		result.Status = StatusWarn
		result.Message = "a rebuild is running or was interrupted"
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d entries, %d embeddings, rebuilt %s",
			entries, embedded, run.FinishedAt.Local().Format(time.DateTime))
	}
	return result
}

// CheckEmbedder loads the configured embedding model. Failure only warns:
// search falls back to lexical ranking.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:    "embedder",
		Details: fmt.Sprintf("Provider: %s, model: %s", c.cfg.Embeddings.Provider, c.cfg.Embeddings.Model),
	}

	if strings.EqualFold(c.cfg.Embeddings.Provider, "none") {
		result.Status = StatusWarn
		result.Message = "disabled by configuration (lexical search only)"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, embedderTimeout)
	defer cancel()

	e, err := c.loader(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unavailable (%v), search is lexical only", err)
		return result
	}
	defer func() { _ = e.Close() }()

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s ready (%d dimensions)", e.ModelName(), e.Dimensions())
	return result
}
