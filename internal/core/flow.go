package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Message roles recorded in a flow history.
const (
	RoleAgent = "agent"
	RoleTool  = "tool"
	RoleHuman = "human"
)

// Message is one entry of a flow history.
type Message struct {
	TaskID    string    `json:"task_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Role      string    `json:"role"`
	Tool      string    `json:"tool,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageObserver is implemented by observers that also want flow history.
type MessageObserver interface {
	RecordMessage(ctx context.Context, f *Flow, m Message)
}

// Flow aggregates the tasks of one run together with their shared agents,
// context and history.
type Flow struct {
	Name        string
	Description string
	Context     map[string]any
	Agents      []*Agent

	mu      sync.RWMutex
	tasks   []*Task
	byID    map[string]*Task
	history []Message
	locks   *taskLocks
}

// NewFlow creates an empty flow.
func NewFlow(name, description string, agents ...*Agent) *Flow {
	return &Flow{
		Name:        name,
		Description: description,
		Agents:      agents,
		byID:        make(map[string]*Task),
		locks:       newTaskLocks(),
	}
}

// Enter makes f the ambient flow of the returned context.
func (f *Flow) Enter(ctx context.Context) context.Context {
	return WithFlow(ctx, f)
}

// AddTask registers t. Adding the same task again is a no-op; a different
// task with the same id is rejected.
func (f *Flow) AddTask(t *Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.byID == nil {
		f.byID = make(map[string]*Task)
	}
	if existing, ok := f.byID[t.id]; ok {
		if existing == t {
			return nil
		}
		return configErrorf("flow %q already has a task with id %q", f.Name, t.id)
	}
	f.byID[t.id] = t
	f.tasks = append(f.tasks, t)
	return nil
}

// lockTask serializes rounds on one task within the flow.
func (f *Flow) lockTask(id string) func() {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = newTaskLocks()
	}
	locks := f.locks
	f.mu.Unlock()
	return locks.lock(id)
}

// Tasks returns the registered tasks in registration order.
func (f *Flow) Tasks() []*Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*Task(nil), f.tasks...)
}

// Task returns the task with the given id.
func (f *Flow) Task(id string) (*Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.byID[id]
	return t, ok
}

// Ready returns the registered tasks that can be worked on now.
func (f *Flow) Ready() []*Task {
	ready := []*Task{}
	for _, t := range f.Tasks() {
		if t.IsReady() {
			ready = append(ready, t)
		}
	}
	return ready
}

// Order returns the registered tasks and their dependencies, dependencies
// first.
func (f *Flow) Order() ([]*Task, error) {
	return Order(f.Tasks()...)
}

// AddMessage appends m to the history and hands it to the ambient observer
// if it records messages.
func (f *Flow) AddMessage(ctx context.Context, m Message) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	f.mu.Lock()
	f.history = append(f.history, m)
	f.mu.Unlock()

	if mo, ok := ObserverFrom(ctx).(MessageObserver); ok {
		mo.RecordMessage(ctx, f, m)
	}
}

// History returns the messages recorded for taskID, or all messages when
// taskID is empty.
func (f *Flow) History(taskID string) []Message {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := []Message{}
	for _, m := range f.history {
		if taskID == "" || m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

// Progress counts registered tasks per status.
type Progress struct {
	Total      int
	Incomplete int
	Successful int
	Failed     int
	Skipped    int
}

// Completed returns the number of tasks in a terminal state.
func (p Progress) Completed() int { return p.Successful + p.Failed + p.Skipped }

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d complete (%d successful, %d failed, %d skipped)",
		p.Completed(), p.Total, p.Successful, p.Failed, p.Skipped)
}

// Progress returns per-status counts of the registered tasks.
func (f *Flow) Progress() Progress {
	var p Progress
	for _, t := range f.Tasks() {
		p.Total++
		switch t.Status() {
		case Incomplete:
			p.Incomplete++
		case Successful:
			p.Successful++
		case Failed:
			p.Failed++
		case Skipped:
			p.Skipped++
		}
	}
	return p
}

// IsComplete reports whether every registered task is complete.
func (f *Flow) IsComplete() bool {
	p := f.Progress()
	return p.Incomplete == 0
}
