package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan>",
	Short: "Check a plan without running it",
	Long: `Validate builds the task graph of a plan against the configured agents
and prints the order the tasks would complete in. Missing references,
dependency cycles, unknown agents and unsupported result types are
reported without starting any agent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		return validatePlan(cmd.Context(), cmd.OutOrStdout(), cfg, p)
	},
}

// validatePlan builds p with inert agents standing in for the configured
// ones and prints the resulting order.
func validatePlan(ctx context.Context, w io.Writer, cfg *config.Config, p *plan.Plan) error {
	agents := make(map[string]*core.Agent, len(cfg.Agents))
	for name, ac := range cfg.Agents {
		agents[name] = &core.Agent{Name: name, Description: ac.Description}
	}

	flow, err := p.Build(ctx, agents)
	if err != nil {
		return err
	}
	order, err := flow.Order()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Plan %s is valid: %d tasks\n", p.Name, len(order))
	for i, t := range order {
		deps := t.DependsOn()
		if len(deps) == 0 {
			fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, t.ID(), t.ResultType())
			continue
		}
		ids := make([]string, len(deps))
		for j, d := range deps {
			ids[j] = d.ID()
		}
		fmt.Fprintf(w, "  %d. %s (%s) after %v\n", i+1, t.ID(), t.ResultType(), ids)
	}
	return nil
}
