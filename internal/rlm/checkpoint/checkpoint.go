// Package checkpoint implements the Checkpoint Manager (spec.md §4.9):
// upsert-by-turn snapshots of the bindings map, so a turn loop can
// restore to any prior point without resurrecting dropped handles.
// Grounded on the same store-backed persistence pattern as
// internal/rlm/registry, sharing the session's single *sql.DB.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rlm-runtime/rlm/internal/rlm/registry"
)

// Bindings maps a name (e.g. "RESULTS", "_1", user variable names) to a
// handle. Scalar turn results are not represented here; they bypass the
// registry entirely per spec.md §3.
type Bindings map[string]registry.Handle

// Manager snapshots and restores Bindings by turn number.
type Manager struct {
	db *sql.DB
}

// New wraps db (already schema-initialized) as a Manager.
func New(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Save snapshots bindings under turn, replacing any existing snapshot
// for that turn (upsert-by-turn, per spec.md §3: "at most one checkpoint
// per turn").
func (m *Manager) Save(ctx context.Context, turn int, bindings Bindings) error {
	raw, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("save checkpoint %d: marshal: %w", turn, err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO checkpoints(turn, bindings_json) VALUES (?, ?)
		ON CONFLICT(turn) DO UPDATE SET bindings_json = excluded.bindings_json, timestamp = CURRENT_TIMESTAMP
	`, turn, string(raw))
	if err != nil {
		return fmt.Errorf("save checkpoint %d: %w", turn, err)
	}
	return nil
}

// Restore returns the Bindings snapshot saved at turn. ok is false if no
// checkpoint exists for that turn.
func (m *Manager) Restore(ctx context.Context, turn int) (Bindings, bool, error) {
	var raw string
	err := m.db.QueryRowContext(ctx,
		`SELECT bindings_json FROM checkpoints WHERE turn = ?`, turn).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("restore checkpoint %d: %w", turn, err)
	}
	var bindings Bindings
	if err := json.Unmarshal([]byte(raw), &bindings); err != nil {
		return nil, false, fmt.Errorf("restore checkpoint %d: unmarshal: %w", turn, err)
	}
	return bindings, true, nil
}

// List returns every saved turn number, ascending.
func (m *Manager) List(ctx context.Context) ([]int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT turn FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var turns []int
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("list checkpoints: scan: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Ints(turns)
	if turns == nil {
		turns = []int{}
	}
	return turns, nil
}

// Delete removes the checkpoint at turn, if any.
func (m *Manager) Delete(ctx context.Context, turn int) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE turn = ?`, turn)
	if err != nil {
		return fmt.Errorf("delete checkpoint %d: %w", turn, err)
	}
	return nil
}

// ClearAll removes every checkpoint.
func (m *Manager) ClearAll(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM checkpoints`)
	if err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	return nil
}
