package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aristath/taskflow/internal/core"
)

// NewAgent creates an agent whose turns are played by the program in cfg.
// The ProcessManager is optional; if nil, subprocesses are not tracked.
func NewAgent(cfg Config, pm *ProcessManager) (*core.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("agent %s: command is required", cfg.Name)
	}

	r := &commandRunner{cfg: cfg, procMgr: pm}
	return &core.Agent{
		Name:         cfg.Name,
		Description:  cfg.Description,
		Instructions: cfg.Instructions,
		UserAccess:   cfg.UserAccess,
		Act:          r.act,
	}, nil
}

type commandRunner struct {
	cfg     Config
	procMgr *ProcessManager
}

// act runs the program once and applies its tool calls in order. Calls the
// tasks reject (bad result, unmet dependencies) stay in the history for the
// next turn; any other failure ends the turn with an error.
func (r *commandRunner) act(ctx context.Context, turn *core.Turn) error {
	req, err := json.Marshal(buildRequest(turn))
	if err != nil {
		return fmt.Errorf("agent %s: encode request: %w", r.cfg.Name, err)
	}

	cmd := newCommand(ctx, r.cfg.Command, r.cfg.Args...)
	cmd.Dir = r.cfg.WorkDir
	stdout, _, err := executeCommand(ctx, cmd, req, r.procMgr)
	if err != nil {
		return fmt.Errorf("agent %s: %w", r.cfg.Name, err)
	}

	resp, err := parseResponse(stdout)
	if err != nil {
		return fmt.Errorf("agent %s: %w", r.cfg.Name, err)
	}

	if resp.Message != "" && turn.Flow != nil {
		m := core.Message{Agent: r.cfg.Name, Role: core.RoleAgent, Content: resp.Message}
		if len(turn.Tasks) > 0 {
			m.TaskID = turn.Tasks[0].ID()
		}
		turn.Flow.AddMessage(ctx, m)
	}

	for _, call := range resp.ToolCalls {
		if _, err := turn.Call(ctx, call.Name, call.Arguments); err != nil {
			if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrPrecondition) {
				log.Printf("WARNING: agent %s: %v", r.cfg.Name, err)
				continue
			}
			return fmt.Errorf("agent %s: %w", r.cfg.Name, err)
		}
	}
	return nil
}

func buildRequest(turn *core.Turn) Request {
	req := Request{
		Instructions: turn.Instructions,
		Tasks:        make([]core.Snapshot, len(turn.Tasks)),
		Tools:        make([]ToolSpec, len(turn.Tools)),
		History:      []core.Message{},
	}
	if turn.Agent != nil {
		req.Agent = turn.Agent.Name
	}

	ids := make(map[string]bool, len(turn.Tasks))
	for i, t := range turn.Tasks {
		req.Tasks[i] = t.Snapshot()
		ids[t.ID()] = true
	}
	for i, tl := range turn.Tools {
		req.Tools[i] = ToolSpec{Name: tl.Name, Description: tl.Description, Parameters: tl.Parameters}
	}
	if turn.Flow != nil {
		req.Flow = turn.Flow.Name
		for _, m := range turn.Flow.History("") {
			if ids[m.TaskID] {
				req.History = append(req.History, m)
			}
		}
	}
	return req
}

// parseResponse decodes the program output. Empty output is a turn without
// any action.
func parseResponse(data []byte) (Response, error) {
	var resp Response
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	for i, call := range resp.ToolCalls {
		if call.Name == "" {
			return Response{}, fmt.Errorf("tool call #%d has no name", i+1)
		}
	}
	return resp, nil
}
