package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/catalog"
	"github.com/Aman-CERP/mojify/internal/config"
	"github.com/Aman-CERP/mojify/internal/embed"
	"github.com/Aman-CERP/mojify/internal/index"
	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/server"
	"github.com/Aman-CERP/mojify/internal/store"
)

// Integration tests run the whole pipeline: catalog database -> indexer ->
// index stores -> engine -> HTTP API.

const catalogSchema = `
CREATE TABLE agents (id TEXT PRIMARY KEY, name TEXT UNIQUE NOT NULL);
CREATE TABLE prompts (id TEXT PRIMARY KEY, title TEXT NOT NULL, context_text TEXT NOT NULL);
CREATE TABLE proposals (
    id TEXT PRIMARY KEY,
    prompt_id TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    emoji_string TEXT NOT NULL,
    rationale TEXT
);
INSERT INTO agents VALUES ('a1', 'rocket-bot'), ('a2', 'moon-bot');
INSERT INTO prompts VALUES
    ('p1', 'Launch Day', 'We shipped the release'),
    ('p2', 'Quiet Morning', 'coffee and rain');
INSERT INTO proposals VALUES
    ('x1', 'p1', 'a1', '🚀🎉', 'liftoff party'),
    ('x2', 'p2', 'a2', '☕', 'slow brew');`

// pipeline is a fully wired search stack over a temp catalog.
type pipeline struct {
	catalogPath string
	catalog     *catalog.Store
	stores      *store.Stores
	capability  *embed.Capability
	engine      *search.Engine
	indexer     *index.Indexer
}

func staticLoader(context.Context) (embed.Embedder, error) {
	return embed.NewStaticEmbedder(), nil
}

func newPipeline(t *testing.T, loader embed.Loader) *pipeline {
	t.Helper()
	dir := t.TempDir()
	p := &pipeline{catalogPath: filepath.Join(dir, "mojify.db")}

	execCatalog(t, p.catalogPath, catalogSchema)

	var err error
	p.catalog, err = catalog.Open(context.Background(), p.catalogPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.catalog.Close() })

	p.stores, err = store.Open(store.Options{DBPath: filepath.Join(dir, "index.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.stores.Close() })

	p.capability = embed.NewCapability(loader)
	t.Cleanup(func() { _ = p.capability.Close() })

	p.engine, err = search.NewEngine(p.stores.Lexical, p.stores.Embeddings, p.capability, search.DefaultEngineConfig())
	require.NoError(t, err)

	p.indexer, err = index.NewIndexer(index.Dependencies{
		Source:     p.catalog,
		Lexical:    p.stores.Lexical,
		Embeddings: p.stores.Embeddings,
		Capability: p.capability,
		Runs:       p.stores.Runs,
	}, index.Config{Workers: 2, LockPath: filepath.Join(dir, "rebuild.lock"), Backend: string(p.stores.Backend)})
	require.NoError(t, err)
	t.Cleanup(p.indexer.Release)

	return p
}

func execCatalog(t *testing.T, path, stmts string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.Exec(stmts)
	require.NoError(t, err)
}

func (p *pipeline) rebuild(t *testing.T) *index.Result {
	t.Helper()
	res, err := p.indexer.Run(context.Background(), index.RunOptions{})
	require.NoError(t, err)
	return res
}

func ids(results []*search.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.EntityID
	}
	return out
}

// =============================================================================
// Index and search
// =============================================================================

func TestIntegration_IndexAndSearch_FindsResults(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a catalog with two prompts, two agents and two proposals
	p := newPipeline(t, staticLoader)

	// When: rebuilding the index
	res := p.rebuild(t)

	// Then: every entity is indexed and embedded
	assert.Equal(t, 6, res.Entities)
	assert.Equal(t, 6, res.Embedded)
	assert.Equal(t, 2, res.Counts[store.EntityPrompt])
	assert.NotEmpty(t, res.Model)

	// And: a lexical match ranks its prompt and the proposal under it
	results, err := p.engine.Search(context.Background(), "launch", search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, ids(results), "p1")
	assert.Contains(t, ids(results), "x1")
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
	}
}

func TestIntegration_TypeFilterRestrictsResults(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	p := newPipeline(t, staticLoader)
	p.rebuild(t)

	results, err := p.engine.Search(context.Background(), "launch", search.Options{
		Types: []store.EntityType{store.EntityProposal},
	})
	require.NoError(t, err)

	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, store.EntityProposal, r.EntityType)
	}
}

func TestIntegration_EmptyIndex_ReturnsNoResults(t *testing.T) {
	p := newPipeline(t, staticLoader)

	results, err := p.engine.Search(context.Background(), "launch", search.Options{})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIntegration_LexicalOnlyWhenEmbeddingsDisabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an unavailable embedding model
	p := newPipeline(t, func(context.Context) (embed.Embedder, error) {
		return nil, embed.ErrDisabled
	})

	// When: rebuilding and searching
	res := p.rebuild(t)
	results, err := p.engine.Search(context.Background(), "coffee", search.Options{})

	// Then: the index is lexical only and search still answers
	require.NoError(t, err)
	assert.Equal(t, 6, res.Entities)
	assert.Zero(t, res.Embedded)
	assert.Contains(t, ids(results), "p2")
	for _, r := range results {
		assert.NotNil(t, r.Snippet, "lexical hits carry a snippet")
	}
}

func TestIntegration_RebuildReplacesRemovedEntities(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog
	p := newPipeline(t, staticLoader)
	p.rebuild(t)

	// When: a prompt and its proposal are deleted and the index is rebuilt
	execCatalog(t, p.catalogPath, `DELETE FROM proposals WHERE prompt_id = 'p2'; DELETE FROM prompts WHERE id = 'p2';`)
	res := p.rebuild(t)

	// Then: they no longer appear
	assert.Equal(t, 4, res.Entities)
	results, err := p.engine.Search(context.Background(), "coffee", search.Options{})
	require.NoError(t, err)
	assert.NotContains(t, ids(results), "p2")
	assert.NotContains(t, ids(results), "x2")
}

func TestIntegration_ConcurrentSearches_NoRace(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog behind a bounded dispatcher
	p := newPipeline(t, staticLoader)
	p.rebuild(t)
	dispatcher, err := search.NewDispatcher(p.engine, 4)
	require.NoError(t, err)
	defer dispatcher.Release()

	// When: many searches run while a rebuild runs
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query := []string{"launch", "coffee", "rocket", "brew"}[i%4]
			if _, err := dispatcher.Search(context.Background(), query, search.Options{Limit: 5}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.indexer.Run(context.Background(), index.RunOptions{}); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)

	// Then: no search or rebuild failed
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

// =============================================================================
// HTTP API
// =============================================================================

func newHTTP(t *testing.T, p *pipeline) (*httptest.Server, *async.Rebuilder) {
	t.Helper()
	rebuilder := async.NewRebuilder(p.indexer.Run, nil)
	t.Cleanup(rebuilder.Stop)

	srv, err := server.NewServer(server.Dependencies{
		Searcher:   p.engine,
		Parents:    p.catalog,
		Rebuilder:  rebuilder,
		Capability: p.capability,
	}, server.Config{}, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, rebuilder
}

func TestIntegration_HTTPSearchEnrichesProposals(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed catalog served over HTTP
	p := newPipeline(t, staticLoader)
	p.rebuild(t)
	ts, _ := newHTTP(t, p)

	// When: searching for proposals
	resp, err := http.Get(ts.URL + "/api/search?" + url.Values{"q": {"liftoff"}, "type": {"proposal"}}.Encode())
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// Then: the proposal hit names its parent prompt
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body server.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "x1", body.Results[0].EntityID)
	assert.Equal(t, "p1", body.Results[0].PromptID)
}

func TestIntegration_HTTPReindex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an empty index served over HTTP
	p := newPipeline(t, staticLoader)
	ts, rebuilder := newHTTP(t, p)

	// When: an operator triggers a rebuild
	resp, err := http.Post(ts.URL+"/api/search/reindex", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, rebuilder.Wait())

	// Then: the status reports the finished run and search finds entities
	statusResp, err := http.Get(ts.URL + "/api/search/reindex")
	require.NoError(t, err)
	defer func() { _ = statusResp.Body.Close() }()
	var snap async.ProgressSnapshot
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&snap))
	assert.Equal(t, string(async.StatusReady), snap.Status)
	assert.Equal(t, 6, snap.Entities)

	results, err := p.engine.Search(context.Background(), "rocket", search.Options{})
	require.NoError(t, err)
	assert.Contains(t, ids(results), "a1")
}

func TestIntegration_HTTPSearchRejectsBadLimit(t *testing.T) {
	p := newPipeline(t, staticLoader)
	ts, _ := newHTTP(t, p)

	resp, err := http.Get(ts.URL + "/api/search?q=launch&limit=500")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// Configuration
// =============================================================================

func TestIntegration_ConfigDrivesEngine(t *testing.T) {
	// Given: defaults with a tighter result cap
	cfg := config.NewConfig()
	cfg.Search.MaxLimit = 2

	p := newPipeline(t, staticLoader)
	p.rebuild(t)
	engine, err := search.NewEngine(p.stores.Lexical, p.stores.Embeddings, p.capability, search.EngineConfigFrom(cfg.Search))
	require.NoError(t, err)

	// When: asking for more than the cap
	results, err := engine.Search(context.Background(), "launch rocket coffee", search.Options{Limit: 10})

	// Then: the configured cap applies
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestIntegration_CancelledRebuildLeavesSearchUsable(t *testing.T) {
	p := newPipeline(t, staticLoader)
	p.rebuild(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.indexer.Run(ctx, index.RunOptions{})
	require.Error(t, err)

	searchCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_, err = p.engine.Search(searchCtx, "launch", search.Options{})
	assert.NoError(t, err)
}
