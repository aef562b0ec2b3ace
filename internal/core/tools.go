package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// HumanToolName is the name of the tool that asks a human for input.
const HumanToolName = "talk_to_human"

// Tool is an operation an agent can invoke by name.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of the arguments object
	StatusTool  bool           // Changes the status of a task
	Handler     func(ctx context.Context, args json.RawMessage) (string, error)
}

// Call invokes the tool with JSON-encoded arguments.
func (tl Tool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	if tl.Handler == nil {
		return "", fmt.Errorf("tool %q has no handler", tl.Name)
	}
	return tl.Handler(ctx, args)
}

// ExcludeStatusTools returns tools without the task status tools.
func ExcludeStatusTools(tools []Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, tl := range tools {
		if !tl.StatusTool {
			out = append(out, tl)
		}
	}
	return out
}

func objectParams(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func decodeArgs(name string, args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("tool %q: invalid arguments: %w", name, err)
	}
	return nil
}

// SuccessTool returns the tool that marks t successful. Its result argument
// follows the input schema of the result type; tasks without a result take
// no arguments.
func (t *Task) SuccessTool() Tool {
	name := fmt.Sprintf("mark_task_%s_successful", t.id)
	params := objectParams(map[string]any{})
	if !t.resultType.IsNone() {
		params = objectParams(map[string]any{"result": t.resultSchema}, "result")
	}

	return Tool{
		Name: name,
		Description: fmt.Sprintf("Mark task %s as successful and provide its result. "+
			"Only call this once the objective has been fully achieved.", t.id),
		Parameters: params,
		StatusTool: true,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Result json.RawMessage `json:"result"`
			}
			if err := decodeArgs(name, args, &in); err != nil {
				return "", err
			}
			var result any
			if len(in.Result) > 0 && string(in.Result) != "null" {
				result = in.Result
			}
			return t.MarkSuccessful(ctx, result)
		},
	}
}

// FailTool returns the tool that marks t failed with an optional message.
func (t *Task) FailTool() Tool {
	name := fmt.Sprintf("mark_task_%s_failed", t.id)
	return Tool{
		Name: name,
		Description: fmt.Sprintf("Mark task %s as failed. Only call this if the task cannot be completed "+
			"with the available information or tools. Explain why in the message.", t.id),
		Parameters: objectParams(map[string]any{
			"message": map[string]any{"type": "string", "description": "Why the task failed."},
		}),
		StatusTool: true,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Message string `json:"message"`
			}
			if err := decodeArgs(name, args, &in); err != nil {
				return "", err
			}
			return t.MarkFailed(ctx, in.Message)
		},
	}
}

// SkipTool returns the tool that marks t skipped.
func (t *Task) SkipTool() Tool {
	return Tool{
		Name: fmt.Sprintf("mark_task_%s_skipped", t.id),
		Description: fmt.Sprintf("Mark task %s as skipped. Only call this if the task is no longer needed "+
			"to achieve the objective of its parent.", t.id),
		Parameters: objectParams(map[string]any{}),
		StatusTool: true,
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
			return t.MarkSkipped(ctx)
		},
	}
}

// HumanTool returns the tool that relays a message to the ambient Human.
func HumanTool() Tool {
	return Tool{
		Name:        HumanToolName,
		Description: "Send a message to a human user and wait for their response.",
		Parameters: objectParams(map[string]any{
			"message": map[string]any{"type": "string"},
		}, "message"),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Message string `json:"message"`
			}
			if err := decodeArgs(HumanToolName, args, &in); err != nil {
				return "", err
			}
			h := HumanFrom(ctx)
			if h == nil {
				return "", fmt.Errorf("tool %q: no human is available", HumanToolName)
			}
			return h.Ask(ctx, in.Message)
		},
	}
}

// Tools returns everything an agent working t may call: the task's own
// tools, the fail and success tools while t is incomplete, the skip tool
// for subtasks when enabled in Settings, and the human tool when t has user
// access.
func (t *Task) Tools(ctx context.Context) []Tool {
	tools := t.OwnTools()
	if t.IsIncomplete() {
		tools = append(tools, t.FailTool(), t.SuccessTool())
		if SettingsFrom(ctx).AllowSkipTool && t.Parent() != nil {
			tools = append(tools, t.SkipTool())
		}
	}
	if t.userAccess {
		tools = append(tools, HumanTool())
	}
	return tools
}
