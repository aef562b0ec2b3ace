package core

import "context"

type ctxKey int

const (
	taskStackKey ctxKey = iota
	flowKey
	agentKey
	instructionsKey
	observerKey
	settingsKey
	humanKey
)

// Enter returns a context in which t is the innermost active task. Tasks
// created under it default to t as their parent. Entering the same task
// again nests another scope; leaving is simply discarding the context.
func (t *Task) Enter(ctx context.Context) context.Context {
	stack := TaskStack(ctx)
	next := make([]*Task, len(stack), len(stack)+1)
	copy(next, stack)
	return context.WithValue(ctx, taskStackKey, append(next, t))
}

// Scope runs fn with t entered as the active task.
func Scope(ctx context.Context, t *Task, fn func(ctx context.Context) error) error {
	return fn(t.Enter(ctx))
}

// TaskStack returns the active task scopes, outermost first.
func TaskStack(ctx context.Context) []*Task {
	stack, _ := ctx.Value(taskStackKey).([]*Task)
	return stack
}

// CurrentTask returns the innermost active task, or nil.
func CurrentTask(ctx context.Context) *Task {
	stack := TaskStack(ctx)
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// WithFlow makes f the ambient flow.
func WithFlow(ctx context.Context, f *Flow) context.Context {
	return context.WithValue(ctx, flowKey, f)
}

// FlowFrom returns the ambient flow, or nil.
func FlowFrom(ctx context.Context) *Flow {
	f, _ := ctx.Value(flowKey).(*Flow)
	return f
}

// WithAgent records the agent currently acting on behalf of the controller.
func WithAgent(ctx context.Context, a *Agent) context.Context {
	return context.WithValue(ctx, agentKey, a)
}

// AgentFrom returns the acting agent, or nil.
func AgentFrom(ctx context.Context) *Agent {
	a, _ := ctx.Value(agentKey).(*Agent)
	return a
}

// WithInstructions pushes text onto the ambient instruction stack. Tasks
// created under the returned context append the stack to their own
// instructions.
func WithInstructions(ctx context.Context, text string) context.Context {
	if text == "" {
		return ctx
	}
	stack := Instructions(ctx)
	next := make([]string, len(stack), len(stack)+1)
	copy(next, stack)
	return context.WithValue(ctx, instructionsKey, append(next, text))
}

// Instructions returns the ambient instruction stack, outermost first.
func Instructions(ctx context.Context) []string {
	stack, _ := ctx.Value(instructionsKey).([]string)
	return stack
}

// WithObserver installs o to be notified of every status change.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey, o)
}

// ObserverFrom returns the ambient observer, or nil.
func ObserverFrom(ctx context.Context) Observer {
	o, _ := ctx.Value(observerKey).(Observer)
	return o
}

// WithSettings overrides the process settings for the returned context.
func WithSettings(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, settingsKey, s)
}

// SettingsFrom returns the ambient settings, or DefaultSettings.
func SettingsFrom(ctx context.Context) Settings {
	if s, ok := ctx.Value(settingsKey).(Settings); ok {
		return s
	}
	return DefaultSettings()
}

// WithHuman installs the human reachable through the talk_to_human tool.
func WithHuman(ctx context.Context, h Human) context.Context {
	return context.WithValue(ctx, humanKey, h)
}

// HumanFrom returns the ambient human, or nil.
func HumanFrom(ctx context.Context) Human {
	h, _ := ctx.Value(humanKey).(Human)
	return h
}
