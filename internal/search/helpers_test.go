package search

import (
	"context"
	"slices"
	"sync"

	"github.com/Aman-CERP/mojify/internal/store"
)

// fakeLexical serves hits from a fixed list, honouring the type filter
// and limit, and records the last query.
type fakeLexical struct {
	mu    sync.Mutex
	hits  []*store.LexicalHit
	err   error
	last  store.LexicalQuery
	calls int
}

func (f *fakeLexical) Clear(context.Context) error                         { return nil }
func (f *fakeLexical) Index(context.Context, []*store.IndexedEntity) error { return nil }
func (f *fakeLexical) Count(context.Context) (int, error)                  { return len(f.hits), nil }
func (f *fakeLexical) Close() error                                        { return nil }

func (f *fakeLexical) Search(_ context.Context, q store.LexicalQuery) ([]*store.LexicalHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = q
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*store.LexicalHit
	for _, h := range f.hits {
		if len(q.Types) > 0 && !slices.Contains(q.Types, h.EntityType) {
			continue
		}
		out = append(out, h)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeLexical) lastQuery() store.LexicalQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// fakeEmbeddings scans a fixed record list in order.
type fakeEmbeddings struct {
	records   []*store.EmbeddingRecord
	err       error
	scanTypes []store.EntityType
	scans     int
}

func (f *fakeEmbeddings) Clear(context.Context) error                            { return nil }
func (f *fakeEmbeddings) Upsert(context.Context, []*store.EmbeddingRecord) error { return nil }
func (f *fakeEmbeddings) Count(context.Context) (int, error)                     { return len(f.records), nil }
func (f *fakeEmbeddings) Close() error                                           { return nil }

func (f *fakeEmbeddings) Scan(_ context.Context, types []store.EntityType, fn func(*store.EmbeddingRecord) error) error {
	f.scans++
	f.scanTypes = types
	if f.err != nil {
		return f.err
	}
	for _, r := range f.records {
		if len(types) > 0 && !slices.Contains(types, r.EntityType) {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// fixedEmbedder returns vec for every text and records what it embedded.
type fixedEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	texts []string
}

func (e *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	return e.vec, nil
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e *fixedEmbedder) Dimensions() int  { return len(e.vec) }
func (e *fixedEmbedder) ModelName() string { return "fixed" }
func (e *fixedEmbedder) Close() error      { return nil }

func (e *fixedEmbedder) embedded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.texts)
}

func lexHit(t store.EntityType, id, title string) *store.LexicalHit {
	return &store.LexicalHit{EntityType: t, EntityID: id, Title: title, Snippet: "..." + title + "...", Score: 1}
}

func embRecord(t store.EntityType, id, content string, vec ...float32) *store.EmbeddingRecord {
	return &store.EmbeddingRecord{EntityType: t, EntityID: id, Content: content, Vector: vec}
}

func resultKeys(results []*Result) []store.Key {
	keys := make([]store.Key, len(results))
	for i, r := range results {
		keys[i] = r.Key()
	}
	return keys
}
