// Package registry implements the Handle Registry (spec.md §4.2): opaque
// $res<N> handles over stored arrays, returning compact stubs so bulky
// data never has to re-enter an LLM prompt. Grounded on the teacher's
// internal/memory/store.go row-persistence pattern, backed by the same
// in-memory SQLite database as internal/rlm/document.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// Handle is an opaque session-unique identifier of the form "$res<N>".
type Handle string

// Stub is the compact, token-efficient view of a stored collection. Its
// Preview is cut to previewMaxLen runes plus "...", so it does not grow
// with the data behind the handle; the stub's total length is not
// checked against a fixed limit.
type Stub struct {
	Handle         Handle `json:"handle"`
	TypeDescriptor string `json:"typeDescriptor"`
	Count          int    `json:"count"`
	Preview        string `json:"preview"`
}

const previewMaxLen = 80

// Registry stores collections behind handles.
type Registry struct {
	db      *sql.DB
	counter int
	results Handle
	hasRes  bool
}

// New wraps db (already schema-initialized) as a Registry.
func New(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Create persists elems under a freshly minted handle with declared
// element type elemType (e.g. "line", "string", "number") and returns it.
func (r *Registry) Create(ctx context.Context, elems []any, elemType string) (Handle, error) {
	r.counter++
	h := Handle(fmt.Sprintf("$res%d", r.counter))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create handle: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO handles(handle, type, count) VALUES (?, ?, ?)`,
		string(h), elemType, len(elems)); err != nil {
		return "", fmt.Errorf("create handle: insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO handle_data(handle, idx, data) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("create handle: prepare: %w", err)
	}
	defer stmt.Close()

	for i, el := range elems {
		raw, err := json.Marshal(el)
		if err != nil {
			return "", fmt.Errorf("create handle: marshal element %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, string(h), i, string(raw)); err != nil {
			return "", fmt.Errorf("create handle: insert element %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create handle: commit: %w", err)
	}
	return h, nil
}

// StubFor builds the compact Stub for an existing handle.
func (r *Registry) StubFor(ctx context.Context, h Handle) (Stub, error) {
	var elemType string
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT type, count FROM handles WHERE handle = ?`, string(h)).
		Scan(&elemType, &count)
	if err == sql.ErrNoRows {
		return Stub{}, rlmerr.InvalidHandlef("unknown handle %q", h)
	}
	if err != nil {
		return Stub{}, fmt.Errorf("stub for %s: %w", h, err)
	}

	preview := ""
	if count > 0 {
		var raw string
		if err := r.db.QueryRowContext(ctx,
			`SELECT data FROM handle_data WHERE handle = ? AND idx = 0`, string(h)).Scan(&raw); err == nil {
			preview = previewOf(raw)
		}
	}

	return Stub{
		Handle:         h,
		TypeDescriptor: "array<" + elemType + ">",
		Count:          count,
		Preview:        preview,
	}, nil
}

func previewOf(raw string) string {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return truncate(raw, previewMaxLen)
	}
	s := fmt.Sprint(v)
	if m, ok := v.(map[string]any); ok {
		b, _ := json.Marshal(m)
		s = string(b)
	}
	return truncate(s, previewMaxLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ExpandOptions bound and format an Expand call.
type ExpandOptions struct {
	Offset int
	Limit  int // 0 means "no limit"
	Format string
}

// Expand returns the raw elements behind a handle, honoring offset/limit
// slicing and the "lines" render format.
func (r *Registry) Expand(ctx context.Context, h Handle, opts ExpandOptions) ([]any, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count FROM handles WHERE handle = ?`, string(h)).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, rlmerr.InvalidHandlef("unknown handle %q", h)
	}
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", h, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM handle_data WHERE handle = ? ORDER BY idx`, string(h))
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", h, err)
	}
	defer rows.Close()

	var all []any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("expand %s: scan: %w", h, err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expand %s: unmarshal: %w", h, err)
		}
		all = append(all, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lo := opts.Offset
	if lo < 0 {
		lo = 0
	}
	if lo > len(all) {
		lo = len(all)
	}
	hi := len(all)
	if opts.Limit > 0 && lo+opts.Limit < hi {
		hi = lo + opts.Limit
	}
	slice := all[lo:hi]

	if opts.Format == "lines" {
		rendered := make([]any, len(slice))
		for i, v := range slice {
			rendered[i] = renderAsLine(v)
		}
		return rendered, nil
	}
	return slice, nil
}

func renderAsLine(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	lineNum, hasNum := m["lineNum"]
	content, hasContent := m["content"]
	if !hasNum || !hasContent {
		return v
	}
	var numStr string
	switch n := lineNum.(type) {
	case float64:
		numStr = strconv.FormatFloat(n, 'f', -1, 64)
	default:
		numStr = fmt.Sprint(n)
	}
	return fmt.Sprintf("[%s] %v", numStr, content)
}

// Drop deletes a handle and (via ON DELETE CASCADE) its stored elements.
// Dropped handles are never reused: the monotonic counter is untouched.
func (r *Registry) Drop(ctx context.Context, h Handle) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM handles WHERE handle = ?`, string(h))
	if err != nil {
		return fmt.Errorf("drop %s: %w", h, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("drop %s: %w", h, err)
	}
	if n == 0 {
		return rlmerr.InvalidHandlef("unknown handle %q", h)
	}
	if r.results == h {
		r.results = ""
		r.hasRes = false
	}
	return nil
}

// List returns every live handle, oldest first.
func (r *Registry) List(ctx context.Context) ([]Handle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT handle FROM handles ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	defer rows.Close()

	var out []Handle
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("list handles: scan: %w", err)
		}
		out = append(out, Handle(s))
	}
	if out == nil {
		out = []Handle{}
	}
	return out, rows.Err()
}

// SetResults records h as the binding for the reserved name RESULTS.
func (r *Registry) SetResults(h Handle) {
	r.results = h
	r.hasRes = true
}

// GetResults returns the current RESULTS binding, if any has been set.
func (r *Registry) GetResults() (Handle, bool) {
	return r.results, r.hasRes
}

// IsHandle reports whether s has the $res<N> shape.
func IsHandle(s string) bool {
	if !strings.HasPrefix(s, "$res") {
		return false
	}
	_, err := strconv.Atoi(s[len("$res"):])
	return err == nil
}
