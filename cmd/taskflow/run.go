package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/controller"
	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/persistence"
	"github.com/aristath/taskflow/internal/plan"
	"github.com/aristath/taskflow/internal/tui"
)

var (
	dbPath        string
	maxIterations int
	showDashboard bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan>",
	Short: "Run every task of a plan to completion",
	Long: `Run builds the task graph described by the plan file and runs each task
nothing else depends on. Dependencies and subtasks are completed first.

With --db, every status change and message is recorded so that another
terminal can follow the run with "taskflow watch".`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanCommand,
}

func init() {
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite file to record the run in (overrides store_path)")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Rounds allowed per task, 0 for unbounded (overrides max_task_iterations)")
	runCmd.Flags().BoolVar(&showDashboard, "tui", false, "Show the live dashboard while the flow runs")
}

// builtinTools are the tools an agent configuration may grant by name.
var builtinTools = map[string]func() core.Tool{
	core.HumanToolName: core.HumanTool,
}

// session holds what one run shares across its tasks.
type session struct {
	cfg       *config.Config
	pm        *backend.ProcessManager
	console   *console // nil when the terminal is not available to agents
	store     persistence.Store
	observers core.Observers
}

// buildAgents creates an agent for every configured name: command agents
// when a command is set, terminal agents otherwise.
func (s *session) buildAgents() (map[string]*core.Agent, error) {
	names := make([]string, 0, len(s.cfg.Agents))
	for name := range s.cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	agents := make(map[string]*core.Agent, len(names))
	for _, name := range names {
		ac := s.cfg.Agents[name]

		var a *core.Agent
		switch {
		case ac.Command != "":
			var err error
			a, err = backend.NewAgent(backend.Config{
				Name:         name,
				Description:  ac.Description,
				Instructions: ac.Instructions,
				UserAccess:   ac.UserAccess,
				Command:      ac.Command,
				Args:         ac.Args,
				WorkDir:      ac.WorkDir,
			}, s.pm)
			if err != nil {
				return nil, err
			}
		case s.console != nil:
			a = s.console.agent(name, ac)
		default:
			return nil, fmt.Errorf("agent %s has no command and the terminal is not available", name)
		}

		for _, toolName := range ac.Tools {
			newTool, ok := builtinTools[toolName]
			if !ok {
				return nil, fmt.Errorf("agent %s: unknown tool %q", name, toolName)
			}
			a.Tools = append(a.Tools, newTool())
		}
		agents[name] = a
	}
	return agents, nil
}

// settings attaches the default agent and controller to the file settings.
func (s *session) settings(agents map[string]*core.Agent) (core.Settings, error) {
	settings := s.cfg.Settings()
	if s.cfg.DefaultAgent != "" {
		settings.DefaultAgent = agents[s.cfg.DefaultAgent]
	}
	cc, err := s.cfg.ControllerConfig()
	if err != nil {
		return settings, err
	}
	settings.Controller = controller.NewFactory(cc)
	return settings, nil
}

func (s *session) answerFunc() controller.AnswerFunc {
	if s.console != nil {
		return s.console.answer
	}
	return func(context.Context, string, string) (string, error) {
		return "", errors.New("no operator is available to answer")
	}
}

// run builds the plan and runs its sink tasks in dependency order. A task
// that fails does not stop the others; all failures are returned together.
func (s *session) run(ctx context.Context, p *plan.Plan) (*core.Flow, error) {
	agents, err := s.buildAgents()
	if err != nil {
		return nil, err
	}
	settings, err := s.settings(agents)
	if err != nil {
		return nil, err
	}

	qa := controller.NewQAChannel(8, s.answerFunc())
	qaCtx, cancelQA := context.WithCancel(ctx)
	qa.Start(qaCtx)
	defer func() {
		cancelQA()
		qa.Stop()
	}()

	ctx = core.WithSettings(ctx, settings)
	ctx = core.WithHuman(ctx, qa)
	if len(s.observers) > 0 {
		ctx = core.WithObserver(ctx, s.observers)
	}

	flow, err := p.Build(ctx, agents)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := persistence.SaveFlow(ctx, s.store, flow); err != nil {
			return flow, err
		}
	}

	sinks, err := sinkTasks(flow)
	if err != nil {
		return flow, err
	}
	var errs []error
	for _, t := range sinks {
		if _, err := t.Run(ctx, core.InFlow(flow), core.WithoutRaiseOnError()); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return flow, ctxErr
			}
			log.Printf("ERROR: %s: %v", t.FriendlyName(), err)
			errs = append(errs, err)
		}
	}
	return flow, errors.Join(errs...)
}

// sinkTasks returns the tasks nothing depends on, in flow order. Running
// them runs the whole flow.
func sinkTasks(f *core.Flow) ([]*core.Task, error) {
	order, err := f.Order()
	if err != nil {
		return nil, err
	}
	var sinks []*core.Task
	for _, t := range order {
		if len(t.Downstreams()) == 0 {
			sinks = append(sinks, t)
		}
	}
	return sinks, nil
}

// printSummary writes one line per task and the flow progress.
func printSummary(w io.Writer, f *core.Flow) {
	order, err := f.Order()
	if err != nil {
		order = f.Tasks()
	}
	fmt.Fprintf(w, "\nFlow %s\n", f.Name)
	for _, t := range order {
		switch t.Status() {
		case core.Successful:
			fmt.Fprintf(w, "  ✓ %s: %v\n", t.ID(), t.Result())
		case core.Failed:
			fmt.Fprintf(w, "  ✗ %s: %s\n", t.ID(), t.ErrorMessage())
		case core.Skipped:
			fmt.Fprintf(w, "  - %s: skipped\n", t.ID())
		default:
			fmt.Fprintf(w, "  … %s: incomplete\n", t.ID())
		}
	}
	fmt.Fprintf(w, "%s\n", f.Progress())
}

func runPlanCommand(cmd *cobra.Command, args []string) error {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, globalPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxTaskIterations = &maxIterations
	}
	if dbPath != "" {
		cfg.StorePath = dbPath
	}

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	pm := backend.NewProcessManager()
	s := &session{cfg: cfg, pm: pm}
	if !showDashboard {
		s.console = newConsole(os.Stdin, os.Stdout)
	}

	if cfg.StorePath != "" {
		store, err := persistence.NewSQLiteStore(ctx, cfg.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		s.store = store
		s.observers = append(s.observers, persistence.NewRecorder(store))
	}

	if !showDashboard {
		flow, err := s.run(ctx, p)
		if ctx.Err() != nil {
			log.Println("Shutdown signal received, cleaning up...")
			shutdown(pm)
		}
		if flow != nil {
			printSummary(cmd.OutOrStdout(), flow)
		}
		return err
	}

	bus := events.NewEventBus()
	defer bus.Close()
	s.observers = append(s.observers, events.NewPublisher(bus))

	program := tea.NewProgram(tui.New(bus, cfg, globalPath, configPath), tea.WithAltScreen())
	uiErr := make(chan error, 1)
	go func() {
		_, err := program.Run()
		uiErr <- err
	}()

	runErr := make(chan error, 1)
	go func() {
		_, err := s.run(ctx, p)
		runErr <- err
	}()

	// The dashboard stays up after the flow finishes until the user quits.
	var flowErr error
	select {
	case err := <-uiErr:
		// Quitting the dashboard cancels the run.
		stop()
		shutdown(pm)
		<-runErr
		return err
	case flowErr = <-runErr:
	case <-ctx.Done():
		stop()
		log.Println("Shutdown signal received, cleaning up...")
		shutdown(pm)
		<-runErr
		program.Quit()
		waitForUI(uiErr)
		return ctx.Err()
	}

	select {
	case err := <-uiErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		program.Quit()
		waitForUI(uiErr)
	}
	return flowErr
}

func shutdown(pm *backend.ProcessManager) {
	if err := pm.KillAll(); err != nil {
		log.Printf("ERROR: killing agent processes: %v", err)
	}
}

func waitForUI(uiErr <-chan error) {
	select {
	case err := <-uiErr:
		if err != nil {
			log.Printf("ERROR: dashboard exit: %v", err)
		}
	case <-time.After(10 * time.Second):
		log.Println("Shutdown timeout exceeded, forcing exit")
	}
}
