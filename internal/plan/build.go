package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/schema"
)

// Build creates a flow with every task of the plan, wired in build order.
// Agent names are resolved against agents.
func (p *Plan) Build(ctx context.Context, agents map[string]*core.Agent) (*core.Flow, error) {
	order, err := p.Validate()
	if err != nil {
		return nil, err
	}

	flowAgents, err := lookupAgents(agents, p.Agents)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", p.Name, err)
	}
	flow := core.NewFlow(p.Name, p.Description, flowAgents...)
	ctx = flow.Enter(ctx)
	if p.Instructions != "" {
		ctx = core.WithInstructions(ctx, p.Instructions)
	}

	specs := make(map[string]TaskSpec, len(p.Tasks))
	for _, s := range p.Tasks {
		specs[s.ID] = s
	}

	for _, id := range order {
		if _, err := buildTask(ctx, flow, specs[id], agents); err != nil {
			return nil, err
		}
	}
	return flow, nil
}

func buildTask(ctx context.Context, flow *core.Flow, s TaskSpec, agents map[string]*core.Agent) (*core.Task, error) {
	resultType := schema.String()
	if s.ResultType != nil {
		var err error
		if resultType, err = schema.Parse(s.ResultType); err != nil {
			return nil, fmt.Errorf("task %q result_type: %w", s.ID, err)
		}
	}

	opts := []core.Option{
		core.WithID(s.ID),
		core.WithResultType(resultType),
	}
	if s.Instructions != "" {
		opts = append(opts, core.WithTaskInstructions(s.Instructions))
	}
	if s.UserAccess {
		opts = append(opts, core.WithUserAccess())
	}
	if s.Parent != "" {
		parent, _ := flow.Task(s.Parent)
		opts = append(opts, core.WithParent(parent))
	}
	if len(s.DependsOn) > 0 {
		deps := make([]*core.Task, len(s.DependsOn))
		for i, id := range s.DependsOn {
			deps[i], _ = flow.Task(id)
		}
		opts = append(opts, core.WithDependsOn(deps...))
	}
	if s.Context != nil {
		opts = append(opts, core.WithContext(resolveRefs(flow, s.Context).(map[string]any)))
	}
	if len(s.Agents) > 0 {
		assigned, err := lookupAgents(agents, s.Agents)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", s.ID, err)
		}
		opts = append(opts, core.WithAgents(assigned...))
	}

	t, err := core.New(ctx, s.Objective, opts...)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", s.ID, err)
	}
	return t, nil
}

// resolveRefs replaces "$task:<id>" strings with the tasks they name.
// Validate has already checked every reference exists.
func resolveRefs(flow *core.Flow, v any) any {
	switch x := v.(type) {
	case string:
		if id, ok := strings.CutPrefix(x, TaskRefPrefix); ok {
			t, _ := flow.Task(id)
			return t
		}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = resolveRefs(flow, item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = resolveRefs(flow, item)
		}
		return out
	}
	return v
}

func lookupAgents(agents map[string]*core.Agent, names []string) ([]*core.Agent, error) {
	out := make([]*core.Agent, 0, len(names))
	for _, name := range names {
		a, ok := agents[name]
		if !ok || a == nil {
			return nil, fmt.Errorf("unknown agent %q", name)
		}
		out = append(out, a)
	}
	return out, nil
}
