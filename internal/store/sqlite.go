package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	claude_session_id TEXT NOT NULL UNIQUE,
	project TEXT,
	cwd TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	prompt_count INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	ended_at TEXT
);

CREATE TABLE IF NOT EXISTS prompts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	claude_session_id TEXT NOT NULL,
	prompt_number INTEGER NOT NULL,
	prompt_text TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	claude_session_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	tool_input TEXT,
	tool_response TEXT,
	cwd TEXT,
	summarized INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	claude_session_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	observation_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(claude_session_id, summarized);
CREATE INDEX IF NOT EXISTS idx_prompts_session ON prompts(claude_session_id);
`

// openDB opens the SQLite database at dbPath, creating parent directories
// and the schema as needed.
func openDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrateDB adds columns introduced after the initial schema. SQLite has no
// ADD COLUMN IF NOT EXISTS, so each migration probes with a SELECT first.
func migrateDB(db *sql.DB) error {
	migrations := []struct {
		check string
		alter string
	}{
		{"SELECT summarized FROM observations LIMIT 1", "ALTER TABLE observations ADD COLUMN summarized INTEGER NOT NULL DEFAULT 0"},
		{"SELECT cwd FROM sessions LIMIT 1", "ALTER TABLE sessions ADD COLUMN cwd TEXT"},
	}

	for _, m := range migrations {
		if _, err := db.Exec(m.check); err != nil {
			if _, err := db.Exec(m.alter); err != nil {
				return err
			}
		}
	}

	return nil
}
