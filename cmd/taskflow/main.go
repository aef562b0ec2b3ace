package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Run flows of dependent tasks with agents",
	Long: `taskflow builds a graph of tasks from a plan file and drives it to
completion by handing turns to agents. Each agent advances a task by calling
the status tools the task exposes; a result is only accepted once it
matches the task's declared result type.

Agents are defined in ~/.taskflow/config.json and .taskflow/config.json.
An agent with a command receives every turn as JSON on stdin; an agent
without one is played by you on the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.ProjectPath, "Path to the project configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig merges the global configuration with the project file chosen
// on the command line.
func loadConfig() (*config.Config, string, error) {
	globalPath, err := config.GlobalPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(globalPath, configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, globalPath, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
