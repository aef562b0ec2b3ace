package core

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Agent performs work on tasks by calling tools. Act runs one turn.
type Agent struct {
	Name         string
	Description  string
	Instructions string
	Tools        []Tool
	UserAccess   bool
	Act          func(ctx context.Context, turn *Turn) error
}

// Turn is what an agent sees during one round: the tasks it should advance
// and the tools it may call.
type Turn struct {
	Agent        *Agent
	Flow         *Flow
	Tasks        []*Task
	Tools        []Tool
	Instructions string
}

// Tool finds a tool of the turn by name.
func (tr *Turn) Tool(name string) (Tool, bool) {
	for _, tl := range tr.Tools {
		if tl.Name == name {
			return tl, true
		}
	}
	return Tool{}, false
}

// Call invokes the named tool as the turn's agent. args may be nil, raw JSON
// or any value that marshals to a JSON object. The exchange is recorded in
// the flow history.
func (tr *Turn) Call(ctx context.Context, name string, args any) (string, error) {
	tl, ok := tr.Tool(name)
	if !ok {
		return "", fmt.Errorf("tool %q is not available in this turn", name)
	}

	var raw json.RawMessage
	switch a := args.(type) {
	case nil:
	case json.RawMessage:
		raw = a
	case []byte:
		raw = a
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("tool %q: encode arguments: %w", name, err)
		}
		raw = data
	}

	ctx = WithAgent(ctx, tr.Agent)
	out, err := tl.Call(ctx, raw)
	if tr.Flow != nil {
		msg := Message{Role: RoleTool, Tool: name, Content: out}
		if tr.Agent != nil {
			msg.Agent = tr.Agent.Name
		}
		if len(tr.Tasks) > 0 {
			msg.TaskID = tr.Tasks[0].ID()
		}
		if err != nil {
			msg.Content = "error: " + err.Error()
		}
		tr.Flow.AddMessage(ctx, msg)
	}
	return out, err
}

// AgentStrategy picks the agent for the next round from those assigned to
// task. iteration counts previous selections for the task.
type AgentStrategy func(agents []*Agent, task *Task, iteration int) *Agent

// RoundRobin cycles through the assigned agents.
func RoundRobin(agents []*Agent, _ *Task, iteration int) *Agent {
	if len(agents) == 0 {
		return nil
	}
	return agents[iteration%len(agents)]
}

// Agents resolves the agents allowed to work t: its own, else its parent's,
// else the flow's, else Settings.DefaultAgent.
func (t *Task) Agents(ctx context.Context) []*Agent {
	if len(t.agents) > 0 {
		return append([]*Agent(nil), t.agents...)
	}
	if p := t.Parent(); p != nil {
		return p.Agents(ctx)
	}
	if f := t.resolveFlow(ctx); f != nil && len(f.Agents) > 0 {
		return append([]*Agent(nil), f.Agents...)
	}
	if a := SettingsFrom(ctx).DefaultAgent; a != nil {
		return []*Agent{a}
	}
	return nil
}

// AgentStrategy resolves the selection strategy: its own, else its
// parent's, else RoundRobin.
func (t *Task) AgentStrategy() AgentStrategy {
	if t.strategy != nil {
		return t.strategy
	}
	if p := t.Parent(); p != nil {
		return p.AgentStrategy()
	}
	return RoundRobin
}

// SelectAgent picks the agent for the next round and advances the task's
// iteration counter. The strategy is only consulted when several agents are
// assigned, and must return one of them.
func (t *Task) SelectAgent(ctx context.Context) (*Agent, error) {
	return t.SelectAgentFrom(t.Agents(ctx))
}

// SelectAgentFrom picks one of candidates for the next round and advances
// the task's iteration counter.
func (t *Task) SelectAgentFrom(candidates []*Agent) (*Agent, error) {
	if len(candidates) == 0 {
		return nil, configErrorf("no agents available for %s", t.FriendlyName())
	}

	t.mu.Lock()
	iteration := t.iteration
	t.iteration++
	t.mu.Unlock()

	if len(candidates) == 1 {
		return candidates[0], nil
	}
	a := t.AgentStrategy()(candidates, t, iteration)
	if a == nil || !slices.Contains(candidates, a) {
		return nil, configErrorf("agent strategy for %s returned an agent that is not assigned to it", t.FriendlyName())
	}
	return a, nil
}

// Iteration returns how many times an agent has been selected for t.
func (t *Task) Iteration() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.iteration
}

func (t *Task) resolveFlow(ctx context.Context) *Flow {
	if f := FlowFrom(ctx); f != nil {
		return f
	}
	return t.flow
}
