package persistence

import (
	"context"
	"fmt"
	"log"

	"github.com/aristath/taskflow/internal/core"
)

// Recorder is a core.Observer and core.MessageObserver that writes every
// status change and flow message to a Store. Store failures are logged and
// never interrupt the task lifecycle.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// UpdateTask stores the task's current snapshot under the ambient flow.
func (r *Recorder) UpdateTask(ctx context.Context, t *core.Task) {
	var flow string
	if f := core.FlowFrom(ctx); f != nil {
		flow = f.Name
	}
	if err := r.store.SaveSnapshot(ctx, flow, t.Snapshot()); err != nil {
		log.Printf("WARNING: failed to record %s: %v", t.FriendlyName(), err)
	}
}

// RecordMessage stores m in the history of f.
func (r *Recorder) RecordMessage(ctx context.Context, f *core.Flow, m core.Message) {
	if err := r.store.SaveMessage(ctx, f.Name, m); err != nil {
		log.Printf("WARNING: failed to record message for task %s: %v", m.TaskID, err)
	}
}

// SaveFlow stores a snapshot of every task in f, dependencies first.
func SaveFlow(ctx context.Context, store Store, f *core.Flow) error {
	tasks, err := f.Order()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := store.SaveSnapshot(ctx, f.Name, t.Snapshot()); err != nil {
			return fmt.Errorf("saving flow %s: %w", f.Name, err)
		}
	}
	return nil
}
