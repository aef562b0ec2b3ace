// Package events carries task status changes and flow activity to
// interested consumers such as the dashboard.
package events

import (
	"time"

	"github.com/aristath/taskflow/internal/core"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topics
const (
	TopicTask = "task"
	TopicFlow = "flow"
)

// Event types
const (
	EventTypeTaskUpdated  = "task.updated"
	EventTypeFlowMessage  = "flow.message"
	EventTypeFlowProgress = "flow.progress"
)

// TaskUpdatedEvent is published after every applied status change.
type TaskUpdatedEvent struct {
	Snapshot  core.Snapshot
	Agent     string // Acting agent, if any
	Timestamp time.Time
}

func (e TaskUpdatedEvent) EventType() string { return EventTypeTaskUpdated }
func (e TaskUpdatedEvent) TaskID() string    { return e.Snapshot.ID }

// FlowMessageEvent is published when a message is added to a flow history.
type FlowMessageEvent struct {
	Flow      string
	Message   core.Message
	Timestamp time.Time
}

func (e FlowMessageEvent) EventType() string { return EventTypeFlowMessage }
func (e FlowMessageEvent) TaskID() string    { return e.Message.TaskID }

// FlowProgressEvent is published with the per-status counts of a flow after
// one of its tasks changed.
type FlowProgressEvent struct {
	Flow      string
	Progress  core.Progress
	Timestamp time.Time
}

func (e FlowProgressEvent) EventType() string { return EventTypeFlowProgress }
func (e FlowProgressEvent) TaskID() string    { return "" }
