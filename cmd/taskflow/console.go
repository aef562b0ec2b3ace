package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/core"
)

var errInputClosed = errors.New("terminal input closed")

// console lets the operator play agents and answer questions on a
// terminal. Prompts are serialized so concurrent turns do not interleave.
type console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewReader(in), out: out}
}

// agent returns an agent whose turns are played on the terminal.
func (c *console) agent(name string, ac config.AgentConfig) *core.Agent {
	return &core.Agent{
		Name:         name,
		Description:  ac.Description,
		Instructions: ac.Instructions,
		UserAccess:   ac.UserAccess,
		Act:          c.act,
	}
}

// act shows the turn and applies the one tool call the operator enters as
// "<tool> [json arguments]". An empty line passes the turn.
func (c *console) act(ctx context.Context, turn *core.Turn) error {
	c.mu.Lock()
	c.printTurn(turn)
	line, err := c.readLine("tool> ")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if line == "" {
		return nil
	}

	name, rawArgs, _ := strings.Cut(line, " ")
	var args any
	if rawArgs = strings.TrimSpace(rawArgs); rawArgs != "" {
		if !json.Valid([]byte(rawArgs)) {
			fmt.Fprintln(c.out, "arguments must be JSON, e.g. {\"result\": \"done\"}")
			return nil
		}
		args = json.RawMessage(rawArgs)
	}

	out, err := turn.Call(ctx, name, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		fmt.Fprintf(c.out, "error: %v\n", err)
		return nil
	}
	fmt.Fprintln(c.out, out)
	return nil
}

func (c *console) printTurn(turn *core.Turn) {
	fmt.Fprintf(c.out, "\n== %s ==\n", turn.Agent.Name)
	if turn.Instructions != "" {
		fmt.Fprintln(c.out, turn.Instructions)
	}
	for _, t := range turn.Tasks {
		fmt.Fprintf(c.out, "Task %s: %s\n", t.ID(), t.Objective())
		fmt.Fprintf(c.out, "  result type: %s\n", t.ResultType())
		ctxValues := t.Context()
		keys := make([]string, 0, len(ctxValues))
		for k := range ctxValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(c.out, "  %s: %v\n", k, ctxValues[k])
		}
	}
	fmt.Fprintln(c.out, "Tools:")
	for _, tl := range turn.Tools {
		fmt.Fprintf(c.out, "  %s  %s\n", tl.Name, tl.Description)
	}
}

// answer implements controller.AnswerFunc.
func (c *console) answer(_ context.Context, taskID, question string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if taskID != "" {
		fmt.Fprintf(c.out, "\n[%s] %s\n", taskID, question)
	} else {
		fmt.Fprintf(c.out, "\n%s\n", question)
	}
	return c.readLine("you> ")
}

// readLine must be called with mu held.
func (c *console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
