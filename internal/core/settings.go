package core

import "context"

// Settings are the process-wide knobs consulted by tasks and run loops.
type Settings struct {
	// MaxTaskIterations bounds the rounds of a run loop. 0 means unbounded.
	MaxTaskIterations int
	// StrictFlowContext makes running a task outside a flow an error instead
	// of creating an implicit one.
	StrictFlowContext bool
	// AllowSkipTool exposes the skip tool for subtasks.
	AllowSkipTool bool
	// DefaultAgent is used when neither the task, its parents nor the flow
	// assign agents.
	DefaultAgent *Agent
	// Controller builds the controller that runs each round.
	Controller ControllerFactory
}

// DefaultSettings returns the settings used when none are installed.
func DefaultSettings() Settings {
	return Settings{MaxTaskIterations: 100}
}

// Observer is notified after every applied status change.
type Observer interface {
	UpdateTask(ctx context.Context, t *Task)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, t *Task)

func (f ObserverFunc) UpdateTask(ctx context.Context, t *Task) { f(ctx, t) }

// Observers fans a status change out to several observers in order.
// Flow messages reach the members that implement MessageObserver.
type Observers []Observer

func (os Observers) UpdateTask(ctx context.Context, t *Task) {
	for _, o := range os {
		if o != nil {
			o.UpdateTask(ctx, t)
		}
	}
}

func (os Observers) RecordMessage(ctx context.Context, f *Flow, m Message) {
	for _, o := range os {
		if mo, ok := o.(MessageObserver); ok {
			mo.RecordMessage(ctx, f, m)
		}
	}
}

// Human answers questions an agent asks through the talk_to_human tool.
type Human interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Controller runs one round of work for a set of tasks.
type Controller interface {
	RunOnce(ctx context.Context) error
	RunOnceAsync(ctx context.Context) <-chan error
}

// ControllerFactory builds a controller for one round. agents may be nil, in
// which case each task's own agents are used.
type ControllerFactory func(tasks []*Task, agents []*Agent, flow *Flow) (Controller, error)
