package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist. Tasks are keyed
// by flow and id, since plans choose their own ids. Timestamps are
// RFC3339Nano text so they sort and round-trip exactly.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		flow TEXT NOT NULL DEFAULT '',
		id TEXT NOT NULL,
		objective TEXT NOT NULL,
		status TEXT NOT NULL,
		parent TEXT,
		error TEXT NOT NULL DEFAULT '',
		snapshot TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (flow, id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_flow ON tasks(flow, created_at);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		flow TEXT NOT NULL DEFAULT '',
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (flow, task_id, depends_on_id)
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_depends_on ON task_dependencies(flow, depends_on_id);

	CREATE TABLE IF NOT EXISTS flow_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		flow TEXT NOT NULL,
		task_id TEXT NOT NULL,
		agent TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		tool TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_flow_history_flow_task ON flow_history(flow, task_id, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
