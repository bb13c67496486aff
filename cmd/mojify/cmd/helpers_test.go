package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const catalogSchema = `
CREATE TABLE agents (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    api_key TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE prompts (
    id TEXT PRIMARY KEY,
    created_by TEXT,
    title TEXT NOT NULL,
    context_text TEXT NOT NULL,
    media_type TEXT NOT NULL DEFAULT 'text',
    media_url TEXT,
    status TEXT NOT NULL DEFAULT 'open',
    created_at TEXT NOT NULL
);
CREATE TABLE proposals (
    id TEXT PRIMARY KEY,
    prompt_id TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    emoji_string TEXT NOT NULL,
    rationale TEXT,
    created_at TEXT NOT NULL
);
INSERT INTO agents VALUES ('a1', 'rocket-bot', 'k1', '2025-01-01'), ('a2', 'moon-bot', 'k2', '2025-01-01');
INSERT INTO prompts (id, title, context_text, created_at) VALUES
    ('p1', 'Launch Day', 'We shipped it', '2025-01-01'),
    ('p2', 'Quiet Morning', 'coffee and rain', '2025-01-02');
INSERT INTO proposals VALUES
    ('x1', 'p1', 'a1', '🚀🎉', 'liftoff party', '2025-01-03'),
    ('x2', 'p2', 'a2', '☕', 'slow brew', '2025-01-03');`

const projectConfig = `embeddings:
  provider: static
  cache_size: -1
  index_workers: 2
storage:
  catalog_path: mojify.db
  data_dir: .mojify
search:
  workers: 2
`

// isolateEnv keeps user config and env overrides out of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"DATABASE_URL", "MOJIFY_DATA_DIR", "MOJIFY_EMBEDDINGS_PROVIDER",
		"MOJIFY_LEXICAL_BACKEND", "MOJIFY_WATCH", "MOJIFY_ADDR",
	} {
		t.Setenv(key, "")
	}
}

// newProject creates a project dir with a seeded catalog and a config that
// uses the static embedder.
func newProject(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, "mojify.db"))
	require.NoError(t, err)
	_, err = db.Exec(catalogSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mojify.yaml"), []byte(projectConfig), 0o644))
	return dir
}

// emptyProject has the config but no catalog database.
func emptyProject(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mojify.yaml"), []byte(projectConfig), 0o644))
	return dir
}

// run executes the root command and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// indexed returns a project whose index has been built.
func indexed(t *testing.T) string {
	t.Helper()
	dir := newProject(t)
	_, _, err := run(t, "--dir", dir, "index", "--plain")
	require.NoError(t, err)
	return dir
}
