package events

import (
	"context"
	"time"

	"github.com/aristath/taskflow/internal/core"
)

// Publisher is a core.Observer that turns status changes and flow messages
// into bus events.
type Publisher struct {
	bus *EventBus
	now func() time.Time
}

// NewPublisher creates a publisher on bus.
func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus, now: time.Now}
}

// UpdateTask publishes a TaskUpdatedEvent and, when the task belongs to the
// ambient flow, a FlowProgressEvent.
func (p *Publisher) UpdateTask(ctx context.Context, t *core.Task) {
	ts := p.now()
	e := TaskUpdatedEvent{Snapshot: t.Snapshot(), Timestamp: ts}
	if a := core.AgentFrom(ctx); a != nil {
		e.Agent = a.Name
	}
	p.bus.Publish(TopicTask, e)

	if f := core.FlowFrom(ctx); f != nil {
		if _, ok := f.Task(t.ID()); ok {
			p.bus.Publish(TopicFlow, FlowProgressEvent{Flow: f.Name, Progress: f.Progress(), Timestamp: ts})
		}
	}
}

// RecordMessage publishes a FlowMessageEvent.
func (p *Publisher) RecordMessage(_ context.Context, f *core.Flow, m core.Message) {
	p.bus.Publish(TopicFlow, FlowMessageEvent{Flow: f.Name, Message: m, Timestamp: p.now()})
}
