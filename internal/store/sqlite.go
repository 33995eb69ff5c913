package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode so external readers are not
// blocked by the single writer. Open is idempotent: re-running the schema
// against an existing file is a no-op.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS memories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  key TEXT NOT NULL UNIQUE,
  content TEXT NOT NULL,
  tags TEXT,
  scope TEXT NOT NULL DEFAULT 'global',
  source TEXT NOT NULL DEFAULT 'manual',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);

CREATE TABLE IF NOT EXISTS skills (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  version TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  project_path TEXT,
  installed_by TEXT,
  installed_at INTEGER NOT NULL,
  last_used_at INTEGER,
  use_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS skill_usage (
  id TEXT PRIMARY KEY,
  skill_name TEXT NOT NULL,
  project_path TEXT,
  started_at INTEGER NOT NULL,
  completed_at INTEGER,
  success INTEGER,
  outcome TEXT,
  tokens_used INTEGER,
  notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_skill_usage_name ON skill_usage(skill_name);

CREATE TABLE IF NOT EXISTS failures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  error_pattern TEXT NOT NULL UNIQUE,
  error_message TEXT,
  solution TEXT,
  skill_name TEXT,
  project_path TEXT,
  occurrence_count INTEGER NOT NULL DEFAULT 1,
  last_seen_at INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_skill ON failures(skill_name);
CREATE INDEX IF NOT EXISTS idx_failures_occurrences ON failures(occurrence_count);

CREATE TABLE IF NOT EXISTS context_entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  skill_name TEXT,
  expires_at INTEGER,
  created_at INTEGER NOT NULL,
  UNIQUE(session_id, key)
);

CREATE INDEX IF NOT EXISTS idx_context_session ON context_entries(session_id);
CREATE INDEX IF NOT EXISTS idx_context_expires_at ON context_entries(expires_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	// FTS5 virtual tables and triggers are created separately since
	// IF NOT EXISTS isn't always supported for virtual tables in older SQLite.
	fts := `
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
  key, content, tags,
  content='memories', content_rowid='id'
);
CREATE VIRTUAL TABLE IF NOT EXISTS failures_fts USING fts5(
  error_pattern, error_message, solution,
  content='failures', content_rowid='id'
);
`
	if _, err := db.Exec(fts); err != nil {
		return fmt.Errorf("create fts tables: %w", err)
	}

	// External-content FTS tables must stay in lockstep with their source
	// rows. The triggers run inside the same transaction as the mutation, so
	// the index is never observably stale.
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
  INSERT INTO memories_fts(rowid, key, content, tags)
  VALUES (NEW.id, NEW.key, NEW.content, NEW.tags);
END;`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
  INSERT INTO memories_fts(memories_fts, rowid, key, content, tags)
  VALUES ('delete', OLD.id, OLD.key, OLD.content, OLD.tags);
END;`,
		`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
  INSERT INTO memories_fts(memories_fts, rowid, key, content, tags)
  VALUES ('delete', OLD.id, OLD.key, OLD.content, OLD.tags);
  INSERT INTO memories_fts(rowid, key, content, tags)
  VALUES (NEW.id, NEW.key, NEW.content, NEW.tags);
END;`,
		`CREATE TRIGGER IF NOT EXISTS failures_ai AFTER INSERT ON failures BEGIN
  INSERT INTO failures_fts(rowid, error_pattern, error_message, solution)
  VALUES (NEW.id, NEW.error_pattern, NEW.error_message, NEW.solution);
END;`,
		`CREATE TRIGGER IF NOT EXISTS failures_ad AFTER DELETE ON failures BEGIN
  INSERT INTO failures_fts(failures_fts, rowid, error_pattern, error_message, solution)
  VALUES ('delete', OLD.id, OLD.error_pattern, OLD.error_message, OLD.solution);
END;`,
		`CREATE TRIGGER IF NOT EXISTS failures_au AFTER UPDATE ON failures BEGIN
  INSERT INTO failures_fts(failures_fts, rowid, error_pattern, error_message, solution)
  VALUES ('delete', OLD.id, OLD.error_pattern, OLD.error_message, OLD.solution);
  INSERT INTO failures_fts(rowid, error_pattern, error_message, solution)
  VALUES (NEW.id, NEW.error_pattern, NEW.error_message, NEW.solution);
END;`,
	}

	for _, t := range triggers {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}

	return nil
}
