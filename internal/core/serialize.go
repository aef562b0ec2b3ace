package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the transmissible state of a task.
type Snapshot struct {
	ID           string          `json:"id"`
	Objective    string          `json:"objective"`
	Instructions string          `json:"instructions,omitempty"`
	Status       Status          `json:"status"`
	Result       any             `json:"result"`
	ResultType   string          `json:"result_type"`
	Error        string          `json:"error,omitempty"`
	Parent       *string         `json:"parent"`
	DependsOn    []string        `json:"depends_on"`
	Subtasks     []string        `json:"subtasks"`
	Context      map[string]any  `json:"context"`
	Agents       []AgentSnapshot `json:"agents"`
	Tools        []ToolSnapshot  `json:"tools"`
	UserAccess   bool            `json:"user_access"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AgentSnapshot is how an agent appears in a task snapshot.
type AgentSnapshot struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tools       []ToolSnapshot `json:"tools"`
	UserAccess  bool           `json:"user_access"`
}

// ToolSnapshot is how a tool appears in a snapshot.
type ToolSnapshot struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Snapshot captures the current state of t. Related tasks appear by id and
// tasks embedded in the context are replaced by a placeholder.
func (t *Task) Snapshot() Snapshot {
	s := Snapshot{
		ID:           t.id,
		Objective:    t.objective,
		Instructions: t.instructions,
		ResultType:   t.resultType.String(),
		DependsOn:    ids(t.DependsOn()),
		Subtasks:     ids(t.Subtasks()),
		Context:      placeholderMap(t.context),
		Agents:       snapshotAgents(t.agents),
		Tools:        snapshotTools(t.tools),
		UserAccess:   t.userAccess,
		CreatedAt:    t.createdAt,
	}
	if p := t.Parent(); p != nil {
		id := p.id
		s.Parent = &id
	}

	t.mu.RLock()
	s.Status = t.status
	s.Result = t.result
	s.Error = t.errMsg
	t.mu.RUnlock()
	return s
}

func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// ContextPlaceholder is what a task embedded in another task's context
// serializes to.
func ContextPlaceholder(t *Task) string {
	return fmt.Sprintf("<Result from task %s>", t.id)
}

func placeholderMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = placeholder(v)
	}
	return out
}

func placeholder(v any) any {
	switch x := v.(type) {
	case *Task:
		if x == nil {
			return nil
		}
		return ContextPlaceholder(x)
	case []*Task:
		out := make([]any, len(x))
		for i, t := range x {
			out[i] = placeholder(t)
		}
		return out
	case map[string]any:
		return placeholderMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = placeholder(item)
		}
		return out
	}
	return v
}

func ids(tasks []*Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.id
	}
	return out
}

func snapshotAgents(agents []*Agent) []AgentSnapshot {
	if agents == nil {
		return nil
	}
	out := make([]AgentSnapshot, len(agents))
	for i, a := range agents {
		out[i] = AgentSnapshot{
			Name:        a.Name,
			Description: a.Description,
			Tools:       snapshotTools(a.Tools),
			UserAccess:  a.UserAccess,
		}
	}
	return out
}

func snapshotTools(tools []Tool) []ToolSnapshot {
	out := make([]ToolSnapshot, len(tools))
	for i, tl := range tools {
		out[i] = ToolSnapshot{Name: tl.Name, Description: tl.Description}
	}
	return out
}
