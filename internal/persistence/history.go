package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/core"
)

// SaveMessage appends a message to the history of flow.
func (s *SQLiteStore) SaveMessage(ctx context.Context, flow string, m core.Message) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flow_history (flow, task_id, agent, role, tool, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, flow, m.TaskID, m.Agent, m.Role, m.Tool, m.Content, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetHistory returns the messages of flow in insertion order, restricted to
// taskID unless it is empty.
func (s *SQLiteStore) GetHistory(ctx context.Context, flow, taskID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, agent, role, tool, content, created_at
		FROM flow_history
		WHERE flow = ? AND (? = '' OR task_id = ?)
		ORDER BY id
	`, flow, taskID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := []core.Message{}
	for rows.Next() {
		var (
			m         core.Message
			createdAt string
		)
		if err := rows.Scan(&m.TaskID, &m.Agent, &m.Role, &m.Tool, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse message time %q: %w", createdAt, err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return history, nil
}
