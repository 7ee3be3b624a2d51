// Package store owns the single in-memory SQLite database backing one
// RLM session: document lines (+ FTS5 index), handles, handle data, and
// checkpoints, matching the persistence layout of spec.md §6. Grounded
// on the teacher's internal/session/sqlite.go schema-as-const-string
// pattern and modernc.org/sqlite driver usage.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema creates every table the session needs. All tables live in one
// database so that dropping a handle can cascade via foreign keys and so
// that a single connection sees a consistent snapshot across components.
const schema = `
CREATE TABLE IF NOT EXISTS document_lines (
	line_num INTEGER PRIMARY KEY,
	content  TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS document_lines_fts USING fts5(
	content,
	content='document_lines',
	content_rowid='line_num',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TABLE IF NOT EXISTS handles (
	handle     TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	count      INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS handle_data (
	handle TEXT NOT NULL REFERENCES handles(handle) ON DELETE CASCADE,
	idx    INTEGER NOT NULL,
	data   TEXT NOT NULL,
	PRIMARY KEY (handle, idx)
);

CREATE TABLE IF NOT EXISTS checkpoints (
	turn      INTEGER PRIMARY KEY,
	bindings_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Open creates a fresh in-memory SQLite database with the session schema
// applied. Each call returns an isolated database — concurrent sessions
// never share state, per spec.md §5.
func Open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	// The in-memory driver is single-connection; foreign_keys must be
	// enabled per-connection, so cap the pool at 1 to keep PRAGMA state.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
