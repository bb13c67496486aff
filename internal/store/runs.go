package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// IndexRun records one rebuild.
type IndexRun struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	EntityCount int
	Embedded    int
	Backend     string
	Model       string
	Error       string
}

// RunLog persists rebuild history in the index database.
type RunLog struct {
	db *sql.DB
}

// NewRunLog wraps db, which must come from OpenSQLite.
func NewRunLog(db *sql.DB) *RunLog {
	return &RunLog{db: db}
}

// Start records a run as in progress.
func (l *RunLog) Start(ctx context.Context, run *IndexRun) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO index_runs (id, started_at, backend, model) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Backend, run.Model)
	if err != nil {
		return mojierrors.StoreUnavailable("failed to record index run", err)
	}
	return nil
}

// Finish stores the outcome of a run.
func (l *RunLog) Finish(ctx context.Context, run *IndexRun) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE index_runs SET finished_at = ?, entity_count = ?, embedded = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt.UTC().Format(time.RFC3339Nano), run.EntityCount, run.Embedded, run.Error, run.ID)
	if err != nil {
		return mojierrors.StoreUnavailable("failed to record index run", err)
	}
	return nil
}

// Last returns the most recently started run, or nil when none exists.
func (l *RunLog) Last(ctx context.Context) (*IndexRun, error) {
	var (
		run      IndexRun
		started  string
		finished sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, entity_count, embedded, backend, model, error
		FROM index_runs ORDER BY rowid DESC LIMIT 1`).
		Scan(&run.ID, &started, &finished, &run.EntityCount, &run.Embedded, &run.Backend, &run.Model, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mojierrors.StoreUnavailable("failed to read index runs", err)
	}

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
	}
	if finished.Valid && finished.String != "" {
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return nil, fmt.Errorf("invalid finished_at %q: %w", finished.String, err)
		}
	}
	return &run, nil
}
