// Package core implements the task graph: tasks with guarded status
// transitions and schema-checked results, the tools an agent uses to change
// them, flows that aggregate them, and the loop that drives a task to
// completion through a Controller.
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aristath/taskflow/internal/schema"
)

const friendlyNameLimit = 50

// Task is a unit of work in the dependency graph.
type Task struct {
	id           string
	objective    string
	instructions string
	resultType   *schema.Type
	resultSchema map[string]any
	context      map[string]any
	agents       []*Agent
	strategy     AgentStrategy
	tools        []Tool
	userAccess   bool
	createdAt    time.Time
	flow         *Flow

	// Guarded by graphMu.
	parent      *Task
	subtasks    taskSet
	dependsOn   taskSet
	downstreams taskSet

	mu        sync.RWMutex
	status    Status
	result    any
	errMsg    string
	iteration int
}

// Option configures a task at construction.
type Option func(*options)

type options struct {
	id           string
	resultType   *schema.Type
	instructions string
	agents       []*Agent
	agentsSet    bool
	strategy     AgentStrategy
	context      map[string]any
	parent       *Task
	dependsOn    []*Task
	tools        []Tool
	userAccess   bool
}

// WithID sets the task id instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithResultType declares the shape of the task result. Use schema.None()
// for tasks that produce no result. The default is schema.String().
func WithResultType(t *schema.Type) Option {
	return func(o *options) { o.resultType = t }
}

// WithTaskInstructions sets task-specific instructions.
func WithTaskInstructions(text string) Option {
	return func(o *options) { o.instructions = text }
}

// WithAgents assigns the agents allowed to work the task. The list must
// not be empty.
func WithAgents(agents ...*Agent) Option {
	return func(o *options) {
		o.agents = agents
		o.agentsSet = true
	}
}

// WithAgentStrategy sets how one of several assigned agents is picked.
func WithAgentStrategy(s AgentStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithContext attaches context values. Any task found in the values, at any
// depth of maps and slices, becomes a dependency.
func WithContext(values map[string]any) Option {
	return func(o *options) { o.context = values }
}

// WithParent sets the parent explicitly instead of using the active task.
func WithParent(p *Task) Option {
	return func(o *options) { o.parent = p }
}

// WithDependsOn adds explicit dependencies.
func WithDependsOn(tasks ...*Task) Option {
	return func(o *options) { o.dependsOn = append(o.dependsOn, tasks...) }
}

// WithTools gives the task tools of its own.
func WithTools(tools ...Tool) Option {
	return func(o *options) { o.tools = append(o.tools, tools...) }
}

// WithUserAccess lets agents working the task talk to a human.
func WithUserAccess() Option {
	return func(o *options) { o.userAccess = true }
}

// New creates a task and wires it into the graph: the parent (explicit or
// the active task), explicit dependencies and tasks referenced from the
// context. The task registers with the ambient flow, if any. Wiring that
// would introduce a dependency cycle is rejected and leaves the graph
// untouched.
func New(ctx context.Context, objective string, opts ...Option) (*Task, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(objective) == "" {
		return nil, configErrorf("task objective is required")
	}
	if o.agentsSet && len(o.agents) == 0 {
		return nil, configErrorf("agents must be omitted or contain at least one agent")
	}
	for _, a := range o.agents {
		if a == nil {
			return nil, configErrorf("agents must not contain nil")
		}
	}

	resultType := o.resultType
	if resultType == nil {
		resultType = schema.String()
	}
	resultSchema, err := schema.InputSchema(resultType)
	if err != nil {
		return nil, &Error{
			Kind: ErrConfiguration,
			Msg:  fmt.Sprintf("unsupported result type %s: %v", resultType, err),
			Err:  err,
		}
	}

	id := o.id
	if id == "" {
		id = newID()
	}

	flow := FlowFrom(ctx)
	if flow != nil {
		if existing, ok := flow.Task(id); ok && existing != nil {
			return nil, configErrorf("flow %q already has a task with id %q", flow.Name, id)
		}
	}

	t := &Task{
		id:           id,
		objective:    objective,
		instructions: joinInstructions(o.instructions, Instructions(ctx)),
		resultType:   resultType,
		resultSchema: resultSchema,
		context:      o.context,
		agents:       o.agents,
		strategy:     o.strategy,
		tools:        o.tools,
		userAccess:   o.userAccess,
		createdAt:    time.Now(),
		flow:         flow,
		status:       Incomplete,
	}

	parent := o.parent
	if parent == nil {
		parent = CurrentTask(ctx)
	}

	deps := append([]*Task(nil), o.dependsOn...)
	deps = append(deps, contextTasks(o.context)...)

	var register func() error
	if flow != nil {
		register = func() error { return flow.AddTask(t) }
	}
	if err := t.wire(parent, deps, register); err != nil {
		return nil, err
	}
	return t, nil
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}

func joinInstructions(own string, ambient []string) string {
	parts := make([]string, 0, len(ambient)+1)
	if own != "" {
		parts = append(parts, own)
	}
	parts = append(parts, ambient...)
	return strings.Join(parts, "\n")
}

// contextTasks collects every task referenced from context values.
func contextTasks(values any) []*Task {
	var found []*Task
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case *Task:
			if x != nil {
				found = append(found, x)
			}
		case []*Task:
			for _, t := range x {
				walk(t)
			}
		case map[string]any:
			for _, key := range sortedKeys(x) {
				walk(x[key])
			}
		case []any:
			for _, item := range x {
				walk(item)
			}
		}
	}
	walk(values)
	return found
}

func (t *Task) ID() string               { return t.id }
func (t *Task) Objective() string        { return t.objective }
func (t *Task) Instructions() string     { return t.instructions }
func (t *Task) ResultType() *schema.Type { return t.resultType }
func (t *Task) UserAccess() bool         { return t.userAccess }
func (t *Task) CreatedAt() time.Time     { return t.createdAt }

// Context returns a shallow copy of the task's context values.
func (t *Task) Context() map[string]any {
	if t.context == nil {
		return nil
	}
	out := make(map[string]any, len(t.context))
	for k, v := range t.context {
		out[k] = v
	}
	return out
}

// OwnTools returns the tools given to the task at construction.
func (t *Task) OwnTools() []Tool {
	return append([]Tool(nil), t.tools...)
}

// FriendlyName returns `Task <id> ("<objective>")`, shortening long
// objectives.
func (t *Task) FriendlyName() string {
	objective := t.objective
	if utf8.RuneCountInString(objective) > friendlyNameLimit {
		objective = string([]rune(objective)[:friendlyNameLimit]) + "..."
	}
	return fmt.Sprintf("Task %s (%q)", t.id, objective)
}

func (t *Task) String() string { return t.FriendlyName() }

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Result returns the validated result. It is nil unless the task succeeded.
func (t *Task) Result() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// ErrorMessage returns the failure message. It is empty unless the task failed.
func (t *Task) ErrorMessage() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errMsg
}

func (t *Task) IsIncomplete() bool { return t.Status() == Incomplete }
func (t *Task) IsComplete() bool   { return t.Status().IsTerminal() }
func (t *Task) IsSuccessful() bool { return t.Status() == Successful }
func (t *Task) IsFailed() bool     { return t.Status() == Failed }
func (t *Task) IsSkipped() bool    { return t.Status() == Skipped }
