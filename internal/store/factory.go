package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LexicalBackend selects the lexical index implementation.
type LexicalBackend string

const (
	// LexicalBackendSQLite uses SQLite FTS5 in the index database (default).
	// WAL mode allows the CLI and the server to share it.
	LexicalBackendSQLite LexicalBackend = "sqlite"

	// LexicalBackendBleve uses a Bleve directory. Single process only.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// Options locates the stores opened by Open.
type Options struct {
	// DBPath is the index database; empty means in-memory.
	DBPath string
	// BlevePath is the Bleve directory; empty means in-memory. Only used
	// with LexicalBackendBleve.
	BlevePath     string
	Backend       LexicalBackend
	SnippetTokens int
}

// Stores bundles the lexical index, embedding store and run log that make up
// the search index. Close releases all of them.
type Stores struct {
	Lexical    LexicalIndex
	Embeddings *SQLiteEmbeddingStore
	Runs       *RunLog
	Backend    LexicalBackend

	db *sql.DB
}

// Open opens the index database and the configured lexical backend.
func Open(opts Options) (*Stores, error) {
	backend := LexicalBackend(strings.ToLower(string(opts.Backend)))
	if backend == "" {
		backend = LexicalBackendSQLite
	}
	if backend != LexicalBackendSQLite && backend != LexicalBackendBleve {
		return nil, fmt.Errorf("unknown lexical backend: %s (valid options: sqlite, bleve)", opts.Backend)
	}

	db, err := OpenSQLite(opts.DBPath)
	if err != nil {
		return nil, err
	}

	lexOpts := []LexicalOption{WithSnippetTokens(opts.SnippetTokens)}
	var lexical LexicalIndex
	switch backend {
	case LexicalBackendBleve:
		lexical, err = NewBleveLexicalIndex(opts.BlevePath, lexOpts...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	default:
		lexical = NewSQLiteLexicalIndex(db, lexOpts...)
	}

	return &Stores{
		Lexical:    lexical,
		Embeddings: NewSQLiteEmbeddingStore(db),
		Runs:       NewRunLog(db),
		Backend:    backend,
		db:         db,
	}, nil
}

// Close closes the lexical index, the embedding store and the database.
func (s *Stores) Close() error {
	return errors.Join(
		s.Lexical.Close(),
		s.Embeddings.Close(),
		s.db.Close(),
	)
}

// Exists reports whether an index database exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
