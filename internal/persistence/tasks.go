package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/core"
)

// ErrNotFound is returned when a task has no stored snapshot.
var ErrNotFound = errors.New("not found")

// SaveSnapshot saves or replaces the snapshot of a task and its dependency
// edges. Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, flow string, snap core.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of task %s: %w", snap.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	if snap.Parent != nil {
		parent = sql.NullString{String: *snap.Parent, Valid: true}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, flow, objective, status, parent, error, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow, id) DO UPDATE SET
			objective = excluded.objective,
			status = excluded.status,
			parent = excluded.parent,
			error = excluded.error,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, snap.ID, flow, snap.Objective, string(snap.Status), parent, snap.Error, string(data),
		snap.CreatedAt.UTC().Format(time.RFC3339Nano), now)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", snap.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE flow = ? AND task_id = ?`, flow, snap.ID); err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}
	for _, depID := range snap.DependsOn {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (flow, task_id, depends_on_id)
			VALUES (?, ?, ?)
		`, flow, snap.ID, depID)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", snap.ID, depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the latest snapshot of a task in flow.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, flow, taskID string) (core.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM tasks WHERE flow = ? AND id = ?`, flow, taskID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("task %s in flow %q: %w", taskID, flow, ErrNotFound)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to query task: %w", err)
	}
	return decodeSnapshot(data)
}

// ListSnapshots returns the snapshots of a flow in creation order. An empty
// flow name lists every stored task.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, flow string) ([]core.Snapshot, error) {
	query := `SELECT snapshot FROM tasks ORDER BY created_at, flow, id`
	args := []any{}
	if flow != "" {
		query = `SELECT snapshot FROM tasks WHERE flow = ? ORDER BY created_at, id`
		args = append(args, flow)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	snaps := []core.Snapshot{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return snaps, nil
}

// Dependents returns the ids of tasks in flow that depend on taskID.
func (s *SQLiteStore) Dependents(ctx context.Context, flow, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id
		FROM task_dependencies
		WHERE flow = ? AND depends_on_id = ?
		ORDER BY task_id
	`, flow, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dependent: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependents: %w", err)
	}
	return ids, nil
}

func decodeSnapshot(data string) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
