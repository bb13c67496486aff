// Package catalog reads the voting backend's database: the agents, prompts
// and proposals that the search index is built from. The catalog is never
// written here.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// Prompt is a voting round.
type Prompt struct {
	ID          string
	Title       string
	ContextText string
}

// Agent is a registered participant. Only the name is searchable.
type Agent struct {
	ID   string
	Name string
}

// Proposal is an emoji answer to a prompt, joined with its parent's title.
type Proposal struct {
	ID          string
	PromptID    string
	EmojiString string
	Rationale   string
	PromptTitle string
}

// Store reads the catalog tables.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the catalog database at path read-only. A missing file is an
// error; a file that cannot be opened yet (locked, mid-migration) is retried
// with backoff.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, mojierrors.New(mojierrors.ErrCodeFileNotFound,
			fmt.Sprintf("catalog database not found: %s", path), err).
			WithSuggestion("set storage.catalog_path or DATABASE_URL to the voting backend database")
	}

	db, err := mojierrors.RetryWithResult(ctx, mojierrors.DefaultRetryConfig(), func() (*sql.DB, error) {
		return openReadOnly(ctx, path)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mojierrors.StoreUnavailable("failed to open catalog database", err)
	}
	return &Store{db: db, path: path}, nil
}

func openReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchPrompts returns every prompt in insertion order.
func (s *Store) FetchPrompts(ctx context.Context) ([]Prompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(context_text, '')
		FROM prompts ORDER BY rowid`)
	if err != nil {
		return nil, queryError(ctx, "prompts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Title, &p.ContextText); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "prompts", err)
	}
	return out, nil
}

// FetchAgents returns every agent in insertion order.
func (s *Store) FetchAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, COALESCE(name, '') FROM agents ORDER BY rowid`)
	if err != nil {
		return nil, queryError(ctx, "agents", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "agents", err)
	}
	return out, nil
}

// FetchProposals returns every proposal whose parent prompt exists, with the
// parent's title. Orphaned proposals are skipped.
func (s *Store) FetchProposals(ctx context.Context) ([]Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pr.id, pr.prompt_id, COALESCE(pr.emoji_string, ''),
		       COALESCE(pr.rationale, ''), COALESCE(p.title, '')
		FROM proposals pr JOIN prompts p ON p.id = pr.prompt_id
		ORDER BY pr.rowid`)
	if err != nil {
		return nil, queryError(ctx, "proposals", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Proposal
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ID, &p.PromptID, &p.EmojiString, &p.Rationale, &p.PromptTitle); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "proposals", err)
	}
	return out, nil
}

// ParentPromptIDs maps each proposal id to its prompt id. Unknown ids are
// absent from the result.
func (s *Store) ParentPromptIDs(ctx context.Context, proposalIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(proposalIDs))
	if len(proposalIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(proposalIDs)), ",")
	args := make([]any, len(proposalIDs))
	for i, id := range proposalIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt_id FROM proposals WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, queryError(ctx, "proposals", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, promptID string
		if err := rows.Scan(&id, &promptID); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		out[id] = promptID
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "proposals", err)
	}
	return out, nil
}

// Counts returns the number of rows per catalog table.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, table := range []string{"prompts", "agents", "proposals"} {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, queryError(ctx, table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func queryError(ctx context.Context, table string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return mojierrors.StoreUnavailable(fmt.Sprintf("failed to read %s from catalog", table), err)
}
