// Package backend runs agents as external programs. Each turn the program
// receives a Request as JSON on stdin and answers with a Response on stdout.
package backend

import (
	"encoding/json"

	"github.com/aristath/taskflow/internal/core"
)

// Request is what an agent program receives for one turn.
type Request struct {
	Agent        string          `json:"agent"`
	Flow         string          `json:"flow,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Tasks        []core.Snapshot `json:"tasks"`
	Tools        []ToolSpec      `json:"tools"`
	History      []core.Message  `json:"history"`
}

// ToolSpec describes a callable tool and the JSON schema of its arguments.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is what an agent program answers.
type Response struct {
	Message   string     `json:"message,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall asks for one tool to be invoked.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Config defines an agent program.
type Config struct {
	Name         string
	Description  string
	Instructions string
	UserAccess   bool
	Command      string
	Args         []string
	WorkDir      string
}
