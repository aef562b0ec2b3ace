// Package controller provides the default core.Controller: each round it
// picks the next ready task among the assigned tasks and their upstream
// dependencies, selects an agent, and runs one agent turn behind a per-agent
// circuit breaker.
package controller

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aristath/taskflow/internal/core"
)

// Config holds what controllers built by one factory share.
type Config struct {
	Breakers *BreakerRegistry
	Retry    *RetryConfig // nil disables retry
}

// Controller advances a set of tasks one agent turn at a time.
type Controller struct {
	tasks  []*core.Task
	agents []*core.Agent
	flow   *core.Flow
	cfg    Config
}

// New creates a controller for tasks. agents, when given, replace the
// agents each task would otherwise resolve.
func New(tasks []*core.Task, agents []*core.Agent, flow *core.Flow, cfg Config) (*Controller, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: controller needs at least one task", core.ErrConfiguration)
	}
	if flow == nil {
		return nil, fmt.Errorf("%w: controller needs a flow", core.ErrConfiguration)
	}
	if cfg.Breakers == nil {
		cfg.Breakers = NewBreakerRegistry(DefaultBreakerSettings())
	}
	return &Controller{tasks: tasks, agents: agents, flow: flow, cfg: cfg}, nil
}

// NewFactory returns a core.ControllerFactory whose controllers share cfg,
// so breaker state survives across rounds.
func NewFactory(cfg Config) core.ControllerFactory {
	if cfg.Breakers == nil {
		cfg.Breakers = NewBreakerRegistry(DefaultBreakerSettings())
	}
	return func(tasks []*core.Task, agents []*core.Agent, flow *core.Flow) (core.Controller, error) {
		return New(tasks, agents, flow, cfg)
	}
}

// Next returns the first ready task in dependency order, or nil when every
// task is complete.
func (c *Controller) Next() (*core.Task, error) {
	order, err := core.Order(c.tasks...)
	if err != nil {
		return nil, err
	}
	for _, t := range order {
		if t.IsReady() {
			return t, nil
		}
	}
	return nil, nil
}

// RunOnce runs one agent turn on the next ready task.
func (c *Controller) RunOnce(ctx context.Context) error {
	task, err := c.Next()
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}

	agent, err := c.selectAgent(ctx, task)
	if err != nil {
		return err
	}
	if agent.Act == nil {
		return fmt.Errorf("%w: agent %q cannot act", core.ErrConfiguration, agent.Name)
	}

	ctx = core.WithFlow(ctx, c.flow)
	ctx = core.WithAgent(ctx, agent)
	ctx = task.Enter(ctx)
	turn := c.turn(ctx, task, agent)

	c.flow.AddMessage(ctx, core.Message{
		TaskID:  task.ID(),
		Agent:   agent.Name,
		Role:    core.RoleAgent,
		Content: fmt.Sprintf("%s is working on %s", agent.Name, task.FriendlyName()),
	})

	err = runProtected(ctx, c.cfg.Breakers.Get(agent.Name), c.cfg.Retry, func() error {
		return agent.Act(ctx, turn)
	})
	if err != nil {
		log.Printf("ERROR: agent %q failed on %s: %v", agent.Name, task.FriendlyName(), err)
		return fmt.Errorf("agent %q on task %s: %w", agent.Name, task.ID(), err)
	}
	return nil
}

// RunOnceAsync runs RunOnce on its own goroutine.
func (c *Controller) RunOnceAsync(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- c.RunOnce(ctx)
	}()
	return ch
}

func (c *Controller) selectAgent(ctx context.Context, task *core.Task) (*core.Agent, error) {
	if len(c.agents) == 0 {
		return task.SelectAgent(ctx)
	}
	return task.SelectAgentFrom(c.agents)
}

// turn assembles what the agent sees: the task's tools followed by its own,
// and the instructions of the flow, the agent and the task.
func (c *Controller) turn(ctx context.Context, task *core.Task, agent *core.Agent) *core.Turn {
	tools := task.Tools(ctx)
	tools = append(tools, agent.Tools...)
	if agent.UserAccess && !task.UserAccess() {
		tools = append(tools, core.HumanTool())
	}

	var parts []string
	for _, s := range []string{c.flow.Description, agent.Instructions, task.Instructions()} {
		if s != "" {
			parts = append(parts, s)
		}
	}

	return &core.Turn{
		Agent:        agent,
		Flow:         c.flow,
		Tasks:        []*core.Task{task},
		Tools:        tools,
		Instructions: strings.Join(parts, "\n\n"),
	}
}
