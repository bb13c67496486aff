package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// DefaultSnippetTokens is the number of content tokens surfaced in a snippet.
const DefaultSnippetTokens = 4

// LexicalOption configures a lexical index.
type LexicalOption func(*lexicalOptions)

type lexicalOptions struct {
	snippetTokens int
}

// WithSnippetTokens sets the snippet window size (1-64).
func WithSnippetTokens(n int) LexicalOption {
	return func(o *lexicalOptions) {
		if n >= 1 && n <= 64 {
			o.snippetTokens = n
		}
	}
}

func applyLexicalOptions(opts []LexicalOption) lexicalOptions {
	o := lexicalOptions{snippetTokens: DefaultSnippetTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SQLiteLexicalIndex implements LexicalIndex on an FTS5 table with the
// porter stemmer and bm25() ranking. It shares the index database with the
// embedding store and does not own the connection.
type SQLiteLexicalIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	opts   lexicalOptions
	closed bool
}

var _ LexicalIndex = (*SQLiteLexicalIndex)(nil)

// NewSQLiteLexicalIndex wraps db, which must come from OpenSQLite.
func NewSQLiteLexicalIndex(db *sql.DB, opts ...LexicalOption) *SQLiteLexicalIndex {
	return &SQLiteLexicalIndex{db: db, opts: applyLexicalOptions(opts)}
}

// Clear removes every row.
func (s *SQLiteLexicalIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM search_fts`); err != nil {
		return mojierrors.StoreUnavailable("failed to clear lexical index", err)
	}
	return nil
}

// Index inserts rows in one transaction.
func (s *SQLiteLexicalIndex) Index(ctx context.Context, entities []*IndexedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mojierrors.StoreUnavailable("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO search_fts (entity_type, entity_id, title, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entities {
		if _, err := stmt.ExecContext(ctx, string(e.EntityType), e.EntityID, e.Title, e.Content); err != nil {
			return fmt.Errorf("failed to index %s: %w", e.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mojierrors.StoreUnavailable("failed to commit lexical rows", err)
	}
	return nil
}

// Search runs an OR query over title and content.
func (s *SQLiteLexicalIndex) Search(ctx context.Context, q LexicalQuery) ([]*LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}
	if len(q.Terms) == 0 || q.Limit <= 0 {
		return []*LexicalHit{}, nil
	}

	// bm25() is lower-is-better, so ORDER BY score puts the best match first.
	query := fmt.Sprintf(`
		SELECT entity_type, entity_id, title,
		       snippet(search_fts, 3, '', '', '...', %d) AS snip,
		       bm25(search_fts) AS score
		FROM search_fts
		WHERE search_fts MATCH ?`, s.opts.snippetTokens)
	args := []any{MatchExpression(q.Terms)}

	if len(q.Types) > 0 {
		placeholders, typeArgs := inClause(q.Types)
		query += ` AND entity_type IN (` + placeholders + `)`
		args = append(args, typeArgs...)
	}
	query += ` ORDER BY score LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMatchSyntaxError(err) {
			return []*LexicalHit{}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mojierrors.StoreUnavailable("lexical search failed", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []*LexicalHit{}
	for rows.Next() {
		var (
			etype, id, title string
			snip             sql.NullString
			score            float64
		)
		if err := rows.Scan(&etype, &id, &title, &snip, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, &LexicalHit{
			EntityType: EntityType(etype),
			EntityID:   id,
			Title:      title,
			Snippet:    snip.String,
			Score:      -score,
		})
	}
	if err := rows.Err(); err != nil {
		if isMatchSyntaxError(err) {
			return []*LexicalHit{}, nil
		}
		return nil, mojierrors.StoreUnavailable("lexical search failed", err)
	}
	return hits, nil
}

// Count returns the number of indexed rows.
func (s *SQLiteLexicalIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errClosed()
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_fts`).Scan(&n); err != nil {
		return 0, mojierrors.StoreUnavailable("failed to count lexical rows", err)
	}
	return n, nil
}

// Close marks the index closed. The shared connection is closed by its owner.
func (s *SQLiteLexicalIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
