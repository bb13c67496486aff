// Package index rebuilds the search index from the catalog: the lexical
// rows for every prompt, agent and proposal, and their embeddings when a
// model is available.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/mojify/internal/catalog"
	"github.com/Aman-CERP/mojify/internal/embed"
	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/store"
	"github.com/Aman-CERP/mojify/internal/telemetry"
)

const (
	// DefaultEmbedBatchSize is the number of texts per EmbedBatch call.
	DefaultEmbedBatchSize = 32

	// lexicalBatchSize is the number of rows per lexical insert transaction.
	lexicalBatchSize = 500
)

// Source supplies the catalog entities to index.
type Source interface {
	FetchPrompts(ctx context.Context) ([]catalog.Prompt, error)
	FetchAgents(ctx context.Context) ([]catalog.Agent, error)
	FetchProposals(ctx context.Context) ([]catalog.Proposal, error)
}

var _ Source = (*catalog.Store)(nil)

// Stage names a phase of a rebuild.
type Stage string

const (
	StageFetching  Stage = "fetching"
	StageIndexing  Stage = "indexing"
	StageEmbedding Stage = "embedding"
	StageDone      Stage = "done"
)

// ProgressEvent reports rebuild progress. Current counts entities finished
// within Stage, out of Total.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
}

// ProgressFunc receives progress events. It may be called from several
// worker goroutines at once.
type ProgressFunc func(ProgressEvent)

// Dependencies are the collaborators of an Indexer.
type Dependencies struct {
	Source     Source
	Lexical    store.LexicalIndex
	Embeddings store.EmbeddingStore
	Capability *embed.Capability

	// Runs records rebuild history. Optional.
	Runs *store.RunLog
}

// Config tunes an Indexer.
type Config struct {
	// Workers sizes the embedding pool. Default: runtime.NumCPU().
	Workers int

	// BatchSize is the number of texts per EmbedBatch call.
	BatchSize int

	// LockPath is the cross-process rebuild lock file. Empty disables it.
	LockPath string

	// Backend is the lexical backend name recorded in the run log.
	Backend string
}

// RunOptions configures one rebuild.
type RunOptions struct {
	// ID identifies the run; a UUID is generated when empty.
	ID       string
	Progress ProgressFunc
}

// Result describes a finished rebuild.
type Result struct {
	RunID string

	// Entities is the number of entities written to the lexical index.
	Entities int

	// Embedded is the number of entities that received a vector.
	Embedded int

	Counts   map[store.EntityType]int
	Model    string
	Duration time.Duration
}

// Indexer performs full rebuilds. Rebuilds are serialized: in-process by a
// mutex and across processes by an optional lock file. Searches are never
// blocked and may see a partially rebuilt index.
type Indexer struct {
	source     Source
	lexical    store.LexicalIndex
	embeddings store.EmbeddingStore
	capability *embed.Capability
	runs       *store.RunLog

	pool      *ants.Pool
	batchSize int
	lockPath  string
	backend   string
	logger    *slog.Logger

	mu sync.Mutex
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the indexer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIndexer creates an Indexer. Release must be called when done.
func NewIndexer(deps Dependencies, cfg Config, opts ...Option) (*Indexer, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	if deps.Lexical == nil {
		return nil, fmt.Errorf("lexical index is required")
	}
	if deps.Embeddings == nil {
		return nil, fmt.Errorf("embedding store is required")
	}
	if deps.Capability == nil {
		return nil, fmt.Errorf("embedding capability is required")
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = DefaultEmbedBatchSize
	}

	i := &Indexer{
		source:     deps.Source,
		lexical:    deps.Lexical,
		embeddings: deps.Embeddings,
		capability: deps.Capability,
		runs:       deps.Runs,
		pool:       pool,
		batchSize:  batchSize,
		lockPath:   cfg.LockPath,
		backend:    cfg.Backend,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Release stops the embedding pool.
func (i *Indexer) Release() {
	i.pool.Release()
}

// Rebuild replaces the whole index with the current catalog and returns the
// number of entities indexed.
func (i *Indexer) Rebuild(ctx context.Context) (int, error) {
	res, err := i.Run(ctx, RunOptions{})
	if err != nil {
		return 0, err
	}
	return res.Entities, nil
}

// Run is Rebuild with a run id, progress reporting and a detailed result.
func (i *Indexer) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.lockPath != "" {
		lock := newRebuildLock(i.lockPath)
		if err := lock.acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, mojierrors.New(mojierrors.ErrCodeRebuildInProgress,
				"another rebuild holds the index lock", err)
		}
		defer func() { _ = lock.release() }()
	}

	runID := opts.ID
	if runID == "" {
		runID = uuid.NewString()
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(ProgressEvent) {}
	}

	start := time.Now()
	run := &store.IndexRun{ID: runID, StartedAt: start, Backend: i.backend}
	if emb, ok := i.capability.Embedder(ctx); ok {
		run.Model = emb.ModelName()
	}
	i.startRun(ctx, run)

	i.logger.Info("rebuild_started",
		slog.String("run_id", runID),
		slog.String("backend", i.backend),
		slog.String("model", run.Model))

	res, err := i.rebuild(ctx, runID, progress)
	duration := time.Since(start)

	run.FinishedAt = time.Now()
	counts := make(map[string]int, len(store.AllEntityTypes))
	if res != nil {
		res.Duration = duration
		res.Model = run.Model
		run.EntityCount = res.Entities
		run.Embedded = res.Embedded
		for t, n := range res.Counts {
			counts[string(t)] = n
		}
	}
	if err != nil {
		run.Error = err.Error()
	}
	i.finishRun(ctx, run)
	telemetry.RecordRebuild(counts, duration, err)

	if err != nil {
		i.logger.Error("rebuild_failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", duration))
		return nil, err
	}

	progress(ProgressEvent{Stage: StageDone, Current: res.Entities, Total: res.Entities})
	i.logger.Info("rebuild_complete",
		slog.String("run_id", runID),
		slog.Int("entities", res.Entities),
		slog.Int("embedded", res.Embedded),
		slog.Int("prompts", counts[string(store.EntityPrompt)]),
		slog.Int("agents", counts[string(store.EntityAgent)]),
		slog.Int("proposals", counts[string(store.EntityProposal)]),
		slog.Int64("duration_ms", duration.Milliseconds()))
	return res, nil
}

func (i *Indexer) rebuild(ctx context.Context, runID string, progress ProgressFunc) (*Result, error) {
	progress(ProgressEvent{Stage: StageFetching})
	docs, err := i.fetch(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Counts: make(map[store.EntityType]int, len(store.AllEntityTypes))}
	for _, d := range docs {
		res.Counts[d.Entity.EntityType]++
	}

	if err := i.lexical.Clear(ctx); err != nil {
		return nil, indexError("failed to clear lexical index", err)
	}
	if err := i.embeddings.Clear(ctx); err != nil {
		return nil, indexError("failed to clear embeddings", err)
	}

	if err := i.indexLexical(ctx, docs, progress); err != nil {
		return nil, err
	}
	res.Entities = len(docs)

	embedder, ok := i.capability.Embedder(ctx)
	if !ok {
		i.logger.Info("rebuild_embeddings_skipped",
			slog.String("run_id", runID),
			slog.String("reason", "embedding model unavailable"))
		return res, nil
	}

	records, err := i.embed(ctx, embedder, docs, progress)
	if err != nil {
		return nil, err
	}
	if err := i.embeddings.Upsert(ctx, records); err != nil {
		return nil, indexError("failed to store embeddings", err)
	}
	res.Embedded = len(records)
	return res, nil
}

func (i *Indexer) fetch(ctx context.Context) ([]Document, error) {
	prompts, err := i.source.FetchPrompts(ctx)
	if err != nil {
		return nil, indexError("failed to read prompts", err)
	}
	agents, err := i.source.FetchAgents(ctx)
	if err != nil {
		return nil, indexError("failed to read agents", err)
	}
	proposals, err := i.source.FetchProposals(ctx)
	if err != nil {
		return nil, indexError("failed to read proposals", err)
	}
	return BuildDocuments(prompts, agents, proposals), nil
}

func (i *Indexer) indexLexical(ctx context.Context, docs []Document, progress ProgressFunc) error {
	total := len(docs)
	progress(ProgressEvent{Stage: StageIndexing, Total: total})

	for start := 0; start < total; start += lexicalBatchSize {
		end := min(start+lexicalBatchSize, total)
		batch := make([]*store.IndexedEntity, 0, end-start)
		for j := start; j < end; j++ {
			batch = append(batch, &docs[j].Entity)
		}
		if err := i.lexical.Index(ctx, batch); err != nil {
			return indexError("failed to write lexical rows", err)
		}
		progress(ProgressEvent{Stage: StageIndexing, Current: end, Total: total})
	}
	return nil
}

// embed computes vectors for docs on the worker pool, one EmbedBatch call
// per task. A failed batch is logged and its entities stay lexical-only.
func (i *Indexer) embed(ctx context.Context, embedder embed.Embedder, docs []Document, progress ProgressFunc) ([]*store.EmbeddingRecord, error) {
	total := len(docs)
	progress(ProgressEvent{Stage: StageEmbedding, Total: total})
	if total == 0 {
		return nil, nil
	}

	numBatches := (total + i.batchSize - 1) / i.batchSize
	batches := make([][]*store.EmbeddingRecord, numBatches)
	var (
		wg     sync.WaitGroup
		done   atomic.Int64
		failed atomic.Int64
	)

	for b := range numBatches {
		start := b * i.batchSize
		end := min(start+i.batchSize, total)
		chunk := docs[start:end]

		wg.Add(1)
		err := i.pool.Submit(func() {
			defer wg.Done()
			batches[b] = i.embedBatch(ctx, embedder, chunk, &failed)
			n := done.Add(int64(len(chunk)))
			progress(ProgressEvent{Stage: StageEmbedding, Current: int(n), Total: total})
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, mojierrors.New(mojierrors.ErrCodeIndexFailed, "embedding pool rejected work", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n := failed.Load(); n > 0 {
		i.logger.Warn("rebuild_embed_partial",
			slog.Int64("failed", n),
			slog.Int("total", total),
			slog.String("effect", "failed entities are searchable lexically only"))
	}

	records := make([]*store.EmbeddingRecord, 0, total)
	for _, batch := range batches {
		records = append(records, batch...)
	}
	return records, nil
}

func (i *Indexer) embedBatch(ctx context.Context, embedder embed.Embedder, docs []Document, failed *atomic.Int64) []*store.EmbeddingRecord {
	if ctx.Err() != nil {
		failed.Add(int64(len(docs)))
		return nil
	}

	texts := make([]string, len(docs))
	for j, d := range docs {
		texts[j] = d.EmbedText
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(docs) {
		if err == nil {
			err = fmt.Errorf("got %d vectors for %d texts", len(vectors), len(docs))
		}
		if !errors.Is(err, context.Canceled) {
			i.logger.Warn("rebuild_embed_batch_failed",
				slog.Int("size", len(docs)),
				slog.String("error", err.Error()))
		}
		failed.Add(int64(len(docs)))
		return nil
	}

	records := make([]*store.EmbeddingRecord, 0, len(docs))
	for j, d := range docs {
		if len(vectors[j]) == 0 {
			failed.Add(1)
			continue
		}
		records = append(records, &store.EmbeddingRecord{
			EntityType: d.Entity.EntityType,
			EntityID:   d.Entity.EntityID,
			Content:    d.EmbedText,
			Vector:     vectors[j],
		})
	}
	return records
}

func (i *Indexer) startRun(ctx context.Context, run *store.IndexRun) {
	if i.runs == nil {
		return
	}
	if err := i.runs.Start(ctx, run); err != nil {
		i.logger.Warn("rebuild_run_log_failed", slog.String("error", err.Error()))
	}
}

func (i *Indexer) finishRun(ctx context.Context, run *store.IndexRun) {
	if i.runs == nil {
		return
	}
	// The outcome is recorded even when the rebuild was cancelled.
	if err := i.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		i.logger.Warn("rebuild_run_log_failed", slog.String("error", err.Error()))
	}
}

// indexError keeps context errors and coded errors as they are and reports
// anything else as an index failure.
func indexError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if mojierrors.GetCode(err) != "" {
		return err
	}
	return mojierrors.New(mojierrors.ErrCodeIndexFailed, msg, err)
}
