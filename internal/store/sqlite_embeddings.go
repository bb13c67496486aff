package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// SQLiteEmbeddingStore implements EmbeddingStore on the search_embeddings
// table. Vectors are stored as float32 BLOBs (see EncodeVector).
type SQLiteEmbeddingStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ EmbeddingStore = (*SQLiteEmbeddingStore)(nil)

// NewSQLiteEmbeddingStore wraps db, which must come from OpenSQLite.
func NewSQLiteEmbeddingStore(db *sql.DB) *SQLiteEmbeddingStore {
	return &SQLiteEmbeddingStore{db: db}
}

// Clear removes every record.
func (s *SQLiteEmbeddingStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM search_embeddings`); err != nil {
		return mojierrors.StoreUnavailable("failed to clear embeddings", err)
	}
	return nil
}

// Upsert writes records in one transaction; the latest write per key wins.
func (s *SQLiteEmbeddingStore) Upsert(ctx context.Context, records []*EmbeddingRecord) error {
	if len(records) == 0 {
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO search_embeddings (entity_type, entity_id, content, embedding, dims)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("empty vector for %s", r.Key())
		}
		if _, err := stmt.ExecContext(ctx,
			string(r.EntityType), r.EntityID, r.Content, EncodeVector(r.Vector), len(r.Vector)); err != nil {
			return fmt.Errorf("failed to upsert embedding %s: %w", r.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mojierrors.StoreUnavailable("failed to commit embeddings", err)
	}
	return nil
}

// Scan streams matching records in insertion order.
func (s *SQLiteEmbeddingStore) Scan(ctx context.Context, types []EntityType, fn func(*EmbeddingRecord) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed()
	}

	query := `SELECT entity_type, entity_id, content, embedding FROM search_embeddings`
	var args []any
	if len(types) > 0 {
		placeholders, typeArgs := inClause(types)
		query += ` WHERE entity_type IN (` + placeholders + `)`
		args = typeArgs
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return mojierrors.StoreUnavailable("failed to read embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			etype, id, content string
			blob               []byte
		)
		if err := rows.Scan(&etype, &id, &content, &blob); err != nil {
			return fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return fmt.Errorf("embedding %s:%s: %w", etype, id, err)
		}
		if err := fn(&EmbeddingRecord{
			EntityType: EntityType(etype),
			EntityID:   id,
			Content:    content,
			Vector:     vec,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return mojierrors.StoreUnavailable("failed to read embeddings", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteEmbeddingStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errClosed()
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_embeddings`).Scan(&n); err != nil {
		return 0, mojierrors.StoreUnavailable("failed to count embeddings", err)
	}
	return n, nil
}

// Dimensions returns the distinct vector sizes present, normally zero or one.
func (s *SQLiteEmbeddingStore) Dimensions(ctx context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dims FROM search_embeddings ORDER BY dims`)
	if err != nil {
		return nil, mojierrors.StoreUnavailable("failed to read dimensions", err)
	}
	defer func() { _ = rows.Close() }()

	var dims []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan dimension: %w", err)
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

// Close marks the store closed. The shared connection is closed by its owner.
func (s *SQLiteEmbeddingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
