package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

const (
	fieldEntityType = "entity_type"
	fieldEntityID   = "entity_id"
	fieldTitle      = "title"
	fieldContent    = "content"

	bleveClearPage = 1000
)

// BleveLexicalIndex implements LexicalIndex with Bleve. Title and content use
// the English analyzer (porter stemming), the key fields are keywords.
// Bleve holds an exclusive lock on its directory, so only one process can
// open a disk index at a time.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	opts   lexicalOptions
	closed bool
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// NewBleveLexicalIndex opens or creates the index at path. An empty path
// creates an in-memory index. A corrupted index directory is removed and
// recreated empty.
func NewBleveLexicalIndex(path string, opts ...LexicalOption) (*BleveLexicalIndex, error) {
	indexMapping := buildBleveMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", path, rmErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open lexical index: %w", err)
	}

	return &BleveLexicalIndex{
		index: idx,
		path:  path,
		opts:  applyLexicalOptions(opts),
	}, nil
}

func buildBleveMapping() *mapping.IndexMappingImpl {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.Store = true
	keywordField.IncludeTermVectors = false

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	textField.Store = true
	textField.IncludeTermVectors = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldEntityType, keywordField)
	doc.AddFieldMappingsAt(fieldEntityID, keywordField)
	doc.AddFieldMappingsAt(fieldTitle, textField)
	doc.AddFieldMappingsAt(fieldContent, textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

// validateBleveIntegrity checks index_meta.json of an existing index.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// Clear deletes every document, one page at a time.
func (b *BleveLexicalIndex) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}

	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), bleveClearPage, 0, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return mojierrors.StoreUnavailable("failed to list lexical documents", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return mojierrors.StoreUnavailable("failed to clear lexical index", err)
		}
	}
}

// Index adds documents in one batch, keyed "type:id".
func (b *BleveLexicalIndex) Index(ctx context.Context, entities []*IndexedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}

	batch := b.index.NewBatch()
	for _, e := range entities {
		doc := map[string]interface{}{
			fieldEntityType: string(e.EntityType),
			fieldEntityID:   e.EntityID,
			fieldTitle:      e.Title,
			fieldContent:    e.Content,
		}
		if err := batch.Index(e.Key().String(), doc); err != nil {
			return fmt.Errorf("failed to index %s: %w", e.Key(), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.index.Batch(batch); err != nil {
		return mojierrors.StoreUnavailable("failed to execute batch", err)
	}
	return nil
}

// Search ORs a match query per term over title and content, restricted to
// the requested entity types.
func (b *BleveLexicalIndex) Search(ctx context.Context, q LexicalQuery) ([]*LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if len(q.Terms) == 0 || q.Limit <= 0 {
		return []*LexicalHit{}, nil
	}

	termQueries := make([]query.Query, 0, len(q.Terms)*2)
	for _, term := range q.Terms {
		for _, field := range []string{fieldTitle, fieldContent} {
			mq := bleve.NewMatchQuery(term)
			mq.SetField(field)
			termQueries = append(termQueries, mq)
		}
	}
	var root query.Query = bleve.NewDisjunctionQuery(termQueries...)

	if len(q.Types) > 0 {
		typeQueries := make([]query.Query, 0, len(q.Types))
		for _, t := range q.Types {
			tq := bleve.NewTermQuery(string(t))
			tq.SetField(fieldEntityType)
			typeQueries = append(typeQueries, tq)
		}
		root = bleve.NewConjunctionQuery(root, bleve.NewDisjunctionQuery(typeQueries...))
	}

	req := bleve.NewSearchRequestOptions(root, q.Limit, 0, false)
	req.Fields = []string{fieldEntityType, fieldEntityID, fieldTitle, fieldContent}
	req.IncludeLocations = true
	req.SortBy([]string{"-_score", "_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mojierrors.StoreUnavailable("lexical search failed", err)
	}

	hits := make([]*LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		content := stringField(hit, fieldContent)
		hits = append(hits, &LexicalHit{
			EntityType: EntityType(stringField(hit, fieldEntityType)),
			EntityID:   stringField(hit, fieldEntityID),
			Title:      stringField(hit, fieldTitle),
			Snippet:    buildSnippet(content, firstMatchOffset(hit, fieldContent), b.opts.snippetTokens),
			Score:      hit.Score,
		})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (b *BleveLexicalIndex) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, errClosed()
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0, mojierrors.StoreUnavailable("failed to count lexical documents", err)
	}
	return int(n), nil
}

// Close closes the index and releases its directory lock.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func stringField(hit *search.DocumentMatch, name string) string {
	if v, ok := hit.Fields[name].(string); ok {
		return v
	}
	return ""
}

// firstMatchOffset returns the smallest byte offset of a matched term in
// field, or -1 when the field did not match.
func firstMatchOffset(hit *search.DocumentMatch, field string) int {
	first := -1
	for _, locations := range hit.Locations[field] {
		for _, loc := range locations {
			if first < 0 || int(loc.Start) < first {
				first = int(loc.Start)
			}
		}
	}
	return first
}

type tokenSpan struct{ start, end int }

// wordSpans returns byte spans of the letter/digit runs in s.
func wordSpans(s string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i, r := range s {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			spans = append(spans, tokenSpan{start, i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{start, len(s)})
	}
	return spans
}

// buildSnippet returns a window of n tokens of content around the token at
// byte offset matchAt (the start of content when matchAt < 0), with "..."
// marking elided text on either side.
func buildSnippet(content string, matchAt, n int) string {
	spans := wordSpans(content)
	if len(spans) == 0 || n <= 0 {
		return ""
	}

	center := 0
	if matchAt >= 0 {
		center = sort.Search(len(spans), func(i int) bool { return spans[i].end > matchAt })
		if center == len(spans) {
			center = len(spans) - 1
		}
	}

	first := center - (n-1)/2
	if first+n > len(spans) {
		first = len(spans) - n
	}
	if first < 0 {
		first = 0
	}
	last := first + n - 1
	if last >= len(spans) {
		last = len(spans) - 1
	}

	var sb strings.Builder
	if first > 0 {
		sb.WriteString("...")
	}
	sb.WriteString(content[spans[first].start:spans[last].end])
	if last < len(spans)-1 {
		sb.WriteString("...")
	}
	return sb.String()
}
