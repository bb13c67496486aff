package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/mojify/internal/embed"
	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/store"
	"github.com/Aman-CERP/mojify/internal/telemetry"
)

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]*Result, error)
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine implements hybrid search over the lexical index and the embedding
// store.
type Engine struct {
	lexical    store.LexicalIndex
	ranker     *Ranker
	capability *embed.Capability
	config     EngineConfig
	fusion     *RRFFusion
	metrics    *telemetry.QueryMetrics
	logger     *slog.Logger
}

var _ Searcher = (*Engine)(nil)

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithMetrics sets the query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a hybrid search engine. The capability decides, once,
// whether query vectors can be produced; when it cannot, searches are
// lexical only.
func NewEngine(
	lexical store.LexicalIndex,
	embeddings store.EmbeddingStore,
	capability *embed.Capability,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if embeddings == nil {
		return nil, fmt.Errorf("%w: embedding store is required", ErrNilDependency)
	}
	if capability == nil {
		return nil, fmt.Errorf("%w: embedding capability is required", ErrNilDependency)
	}

	e := &Engine{
		lexical:    lexical,
		ranker:     NewRanker(embeddings, config.SimilarityThreshold),
		capability: capability,
		config:     config,
		fusion:     NewRRFFusion(config.RRFConstant),
		logger:     slog.Default(),
	}
	if config.TitleExcerptLen > 0 {
		e.fusion.TitleExcerptLen = config.TitleExcerptLen
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Capability returns the embedding capability used for query vectors.
func (e *Engine) Capability() *embed.Capability {
	return e.capability
}

// Search runs the lexical query and the query embedding in parallel, ranks
// stored vectors when a query vector was produced and fuses both rankings.
//
// Blank queries and queries without letters or digits return no results.
// Only storage failures are returned as errors (StoreUnavailable).
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return []*Result{}, nil
	}
	tokens := store.SanitizeQuery(query)
	if len(tokens) == 0 {
		return []*Result{}, nil
	}

	limit := e.config.clampLimit(opts.Limit)
	fetch := limit * max(1, e.config.FetchMultiplier)
	types := validTypes(opts.Types)

	lexical, queryVec, err := e.parallelSearch(ctx, query, tokens, types, fetch)
	if err != nil {
		telemetry.RecordSearch(modeOf(queryVec), 0, time.Since(start), err)
		return nil, err
	}

	semantic, err := e.ranker.Rank(ctx, queryVec, types, fetch)
	if err != nil {
		err = storeError("embedding scan failed", err)
		telemetry.RecordSearch(modeOf(queryVec), 0, time.Since(start), err)
		return nil, err
	}

	results := e.fusion.Fuse(lexical, semantic, limit)

	elapsed := time.Since(start)
	e.logger.Debug("search_complete",
		slog.String("query", query),
		slog.Int("lexical_hits", len(lexical)),
		slog.Int("semantic_hits", len(semantic)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", elapsed))
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Mode:        modeOf(queryVec),
		ResultCount: len(results),
		Latency:     elapsed,
		Timestamp:   time.Now(),
	})
	return results, nil
}

// parallelSearch runs the lexical search and the query embedding
// concurrently. A missing query vector is not an error.
func (e *Engine) parallelSearch(
	ctx context.Context,
	query string,
	tokens []string,
	types []store.EntityType,
	fetch int,
) (lexical []*store.LexicalHit, queryVec []float32, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, searchErr := e.lexical.Search(gctx, store.LexicalQuery{
			Terms: store.LexicalTerms(tokens, e.config.MaxLexicalTerms),
			Types: types,
			Limit: fetch,
		})
		if searchErr != nil {
			return storeError("lexical search failed", searchErr)
		}
		lexical = hits
		return nil
	})

	// The embedding sees the full query, not the truncated term list.
	g.Go(func() error {
		if vec, ok := e.capability.Embed(gctx, query); ok {
			queryVec = vec
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return lexical, queryVec, nil
}

// storeError passes through context errors and errors that already carry a
// code, and reports anything else as StoreUnavailable.
func storeError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if mojierrors.GetCode(err) != "" {
		return err
	}
	return mojierrors.StoreUnavailable(msg, err)
}

func modeOf(queryVec []float32) telemetry.QueryMode {
	if queryVec != nil {
		return telemetry.QueryModeHybrid
	}
	return telemetry.QueryModeLexical
}

// validTypes drops unknown entity types; nothing valid means no filter.
func validTypes(types []store.EntityType) []store.EntityType {
	if len(types) == 0 {
		return nil
	}
	raw := make([]string, len(types))
	for i, t := range types {
		raw[i] = string(t)
	}
	return store.FilterEntityTypes(raw)
}
