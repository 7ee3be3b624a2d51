// Package document implements the Line Store (spec.md §4.1): indexed
// line storage over an in-memory SQLite database with an FTS5 full-text
// index, grounded on the teacher's internal/memory/store.go BM25/FTS5
// sync pattern (explicit INSERT into the shadow fts table rather than
// content-table triggers, so search failures can't corrupt the primary
// table).
package document

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Line is one 1-based line of the loaded document.
type Line struct {
	LineNum int
	Content string
}

// LineStore is the indexed line storage for one session's document.
type LineStore struct {
	db *sql.DB
}

// New wraps db (already schema-initialized by internal/rlm/store) as a
// LineStore.
func New(db *sql.DB) *LineStore {
	return &LineStore{db: db}
}

// Load replaces any existing document content atomically: splits text on
// "\n", assigns dense 1-based line numbers, and rebuilds the FTS index.
// Empty input yields zero lines (spec.md §8: "Loading empty text, then
// loading non-empty text, yields only the non-empty document").
func (s *LineStore) Load(ctx context.Context, text string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("load: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_lines_fts`); err != nil {
		return 0, fmt.Errorf("load: clear fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_lines`); err != nil {
		return 0, fmt.Errorf("load: clear lines: %w", err)
	}

	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_lines(line_num, content) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("load: prepare insert: %w", err)
	}
	defer stmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO document_lines_fts(rowid, content) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("load: prepare fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for i, content := range lines {
		lineNum := i + 1
		if _, err := stmt.ExecContext(ctx, lineNum, content); err != nil {
			return 0, fmt.Errorf("load: insert line %d: %w", lineNum, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, lineNum, content); err != nil {
			return 0, fmt.Errorf("load: index line %d: %w", lineNum, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("load: commit: %w", err)
	}
	return len(lines), nil
}

// GetLineCount returns the number of lines currently loaded.
func (s *LineStore) GetLineCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_lines`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("get line count: %w", err)
	}
	return n, nil
}

// GetLines returns lines [lo, hi] inclusive, clamped to the available
// range. getLines(1,0) (an empty, inverted range) returns no lines;
// getLines(0, n) clamps lo up to 1.
func (s *LineStore) GetLines(ctx context.Context, lo, hi int) ([]Line, error) {
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		return []Line{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_num, content FROM document_lines WHERE line_num BETWEEN ? AND ? ORDER BY line_num`,
		lo, hi)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.LineNum, &l.Content); err != nil {
			return nil, fmt.Errorf("get lines: scan: %w", err)
		}
		out = append(out, l)
	}
	if out == nil {
		out = []Line{}
	}
	return out, rows.Err()
}

// Search runs a token-level (word-aware, diacritic-folded,
// case-insensitive) full-text query. A malformed FTS5 MATCH expression
// returns an empty result, never an error — grep/regex semantics belong
// at the DSL layer, not here (spec.md §4.1).
func (s *LineStore) Search(ctx context.Context, query string) ([]Line, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Line{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.line_num, d.content
		FROM document_lines_fts f
		JOIN document_lines d ON d.line_num = f.rowid
		WHERE document_lines_fts MATCH ?
		ORDER BY rank`, query)
	if err != nil {
		// Malformed MATCH syntax: fail open to an empty result set.
		return []Line{}, nil
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.LineNum, &l.Content); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		out = append(out, l)
	}
	if out == nil {
		out = []Line{}
	}
	return out, nil
}

// Clear empties the document, leaving the FTS index and primary table
// both empty. Equivalent to Load(ctx, "").
func (s *LineStore) Clear(ctx context.Context) error {
	_, err := s.Load(ctx, "")
	return err
}
