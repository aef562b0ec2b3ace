package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/persistence"
	"github.com/aristath/taskflow/internal/plan"
)

const demoPlan = `
name: demo
tasks:
  - id: fetch
    objective: Fetch the data
  - id: report
    objective: Count the rows
    result_type: int
    depends_on: [fetch]
`

func mustPlan(t *testing.T, src string) *plan.Plan {
	t.Helper()
	p, err := plan.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	return p
}

// consoleSession returns a session whose default console agent reads the
// given operator input.
func consoleSession(input string, out *bytes.Buffer) *session {
	return &session{
		cfg:     config.DefaultConfig(),
		pm:      backend.NewProcessManager(),
		console: newConsole(strings.NewReader(input), out),
	}
}

// TestSessionRunCompletesFlow verifies the operator can drive a flow to
// completion, upstream tasks first.
func TestSessionRunCompletesFlow(t *testing.T) {
	var out bytes.Buffer
	input := "mark_task_fetch_successful {\"result\": \"3 rows\"}\n" +
		"mark_task_report_successful {\"result\": \"3\"}\n"
	s := consoleSession(input, &out)

	flow, err := s.run(context.Background(), mustPlan(t, demoPlan))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	p := flow.Progress()
	if p.Total != 2 || p.Successful != 2 {
		t.Errorf("expected both tasks to succeed, got %+v", p)
	}
	report, _ := flow.Task("report")
	if report.Result() != 3 {
		t.Errorf("expected validated result 3, got %#v", report.Result())
	}
	if !strings.Contains(out.String(), "mark_task_fetch_successful") {
		t.Errorf("expected the turn's tools to be shown, got:\n%s", out.String())
	}
	if len(flow.History("fetch")) == 0 {
		t.Error("expected fetch to have history")
	}
}

// TestSessionRunRetriesRejectedResult verifies a result that does not match
// the result type leaves the task incomplete for the next turn.
func TestSessionRunRetriesRejectedResult(t *testing.T) {
	var out bytes.Buffer
	input := "mark_task_fetch_successful {\"result\": \"ok\"}\n" +
		"mark_task_report_successful {\"result\": \"many\"}\n" +
		"mark_task_report_successful {\"result\": 7}\n"
	s := consoleSession(input, &out)

	flow, err := s.run(context.Background(), mustPlan(t, demoPlan))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	report, _ := flow.Task("report")
	if !report.IsSuccessful() || report.Result() != 7 {
		t.Errorf("expected report to succeed with 7, got %s %v", report.Status(), report.Result())
	}
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("expected the rejected result to be reported, got:\n%s", out.String())
	}
}

// TestSessionRunContinuesPastFailure verifies a failed dependency still
// completes, so its downstream task gets a turn.
func TestSessionRunContinuesPastFailure(t *testing.T) {
	var out bytes.Buffer
	input := "mark_task_fetch_failed {\"message\": \"offline\"}\n" +
		"mark_task_report_failed {\"message\": \"no data\"}\n"
	s := consoleSession(input, &out)

	flow, err := s.run(context.Background(), mustPlan(t, demoPlan))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	fetch, _ := flow.Task("fetch")
	if !fetch.IsFailed() || fetch.ErrorMessage() != "offline" {
		t.Errorf("fetch: %s %q", fetch.Status(), fetch.ErrorMessage())
	}

	var summary bytes.Buffer
	printSummary(&summary, flow)
	if !strings.Contains(summary.String(), "✗ fetch: offline") || !strings.Contains(summary.String(), "✗ report: no data") {
		t.Errorf("unexpected summary:\n%s", summary.String())
	}
}

// TestSessionRunStopsWhenInputCloses verifies a console agent without input
// ends the run with an error instead of spinning.
func TestSessionRunStopsWhenInputCloses(t *testing.T) {
	var out bytes.Buffer
	s := consoleSession("mark_task_fetch_successful {\"result\": \"x\"}\n", &out)

	flow, err := s.run(context.Background(), mustPlan(t, demoPlan))
	if !errors.Is(err, errInputClosed) {
		t.Fatalf("expected errInputClosed, got %v", err)
	}
	report, _ := flow.Task("report")
	if !report.IsIncomplete() {
		t.Errorf("expected report to stay incomplete, got %s", report.Status())
	}
}

// TestSessionRunRecordsToStore verifies a run with a store records every
// task and message.
func TestSessionRunRecordsToStore(t *testing.T) {
	ctx := context.Background()
	store, err := persistence.NewMemoryStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var out bytes.Buffer
	s := consoleSession("mark_task_fetch_successful {\"result\": \"x\"}\nmark_task_report_successful {\"result\": 1}\n", &out)
	s.store = store
	s.observers = core.Observers{persistence.NewRecorder(store)}

	if _, err := s.run(ctx, mustPlan(t, demoPlan)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	snaps, err := store.ListSnapshots(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	for _, snap := range snaps {
		if snap.Status != core.Successful {
			t.Errorf("%s: expected SUCCESSFUL, got %s", snap.ID, snap.Status)
		}
	}
	history, err := store.GetHistory(ctx, "demo", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) < 4 {
		t.Errorf("expected turn and tool messages to be recorded, got %d", len(history))
	}
}

// TestSessionAnswersHumanTool verifies talk_to_human reaches the operator.
func TestSessionAnswersHumanTool(t *testing.T) {
	var out bytes.Buffer
	input := "talk_to_human {\"message\": \"Which source?\"}\n" +
		"the archive\n" +
		"mark_task_fetch_successful {\"result\": \"archived rows\"}\n" +
		"mark_task_report_successful {\"result\": 2}\n"
	s := consoleSession(input, &out)

	flow, err := s.run(context.Background(), mustPlan(t, demoPlan))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "[fetch] Which source?") {
		t.Errorf("expected the question to be shown, got:\n%s", out.String())
	}

	var answered bool
	for _, m := range flow.History("fetch") {
		if m.Role == core.RoleHuman && m.Content == "the archive" {
			answered = true
		}
	}
	if !answered {
		t.Error("expected the answer in the fetch history")
	}
}

func TestBuildAgents(t *testing.T) {
	tests := []struct {
		name    string
		agents  map[string]config.AgentConfig
		console bool
		wantErr string
	}{
		{
			name:    "console agent",
			agents:  map[string]config.AgentConfig{"me": {}},
			console: true,
		},
		{
			name:   "command agent without terminal",
			agents: map[string]config.AgentConfig{"bot": {Command: "true", Tools: []string{core.HumanToolName}}},
		},
		{
			name:    "console agent without terminal",
			agents:  map[string]config.AgentConfig{"me": {}},
			wantErr: "terminal is not available",
		},
		{
			name:    "unknown tool",
			agents:  map[string]config.AgentConfig{"bot": {Command: "true", Tools: []string{"rm_rf"}}},
			wantErr: "unknown tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Agents = tt.agents
			s := &session{cfg: cfg, pm: backend.NewProcessManager()}
			if tt.console {
				s.console = newConsole(strings.NewReader(""), &bytes.Buffer{})
			}

			agents, err := s.buildAgents()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(agents) != len(tt.agents) {
				t.Errorf("expected %d agents, got %d", len(tt.agents), len(agents))
			}
			for name, a := range agents {
				if a.Name != name || a.Act == nil {
					t.Errorf("agent %s is not runnable: %+v", name, a)
				}
				if len(a.Tools) != len(tt.agents[name].Tools) {
					t.Errorf("agent %s: expected %d tools, got %d", name, len(tt.agents[name].Tools), len(a.Tools))
				}
			}
		})
	}
}

// TestConsoleAnswer verifies answers are read line by line and a closed
// input is reported.
func TestConsoleAnswer(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(strings.NewReader("  yes please \nlast"), &out)

	got, err := c.answer(context.Background(), "t1", "Continue?")
	if err != nil || got != "yes please" {
		t.Errorf("first answer = %q, %v", got, err)
	}
	got, err = c.answer(context.Background(), "", "And now?")
	if err != nil || got != "last" {
		t.Errorf("unterminated last line = %q, %v", got, err)
	}
	if _, err := c.answer(context.Background(), "", "Anyone?"); !errors.Is(err, errInputClosed) {
		t.Errorf("expected errInputClosed, got %v", err)
	}
	if !strings.Contains(out.String(), "[t1] Continue?") {
		t.Errorf("expected question with task id, got %q", out.String())
	}
}

func TestValidatePlan(t *testing.T) {
	var out bytes.Buffer
	if err := validatePlan(context.Background(), &out, config.DefaultConfig(), mustPlan(t, demoPlan)); err != nil {
		t.Fatalf("validatePlan failed: %v", err)
	}
	want := "  1. fetch (string)\n  2. report (integer) after [fetch]\n"
	if !strings.HasSuffix(out.String(), want) {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	cyclic := `
name: loop
tasks:
  - {id: a, objective: A, depends_on: [b]}
  - {id: b, objective: B, depends_on: [a]}
`
	err := validatePlan(context.Background(), &out, config.DefaultConfig(), mustPlan(t, cyclic))
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected a cycle to be rejected, got %v", err)
	}
}

// TestPollerPublishesChanges verifies only new or changed snapshots and new
// messages are published.
func TestPollerPublishesChanges(t *testing.T) {
	ctx := context.Background()
	store, err := persistence.NewMemoryStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	flow := core.NewFlow("demo", "")
	fctx := core.WithObserver(flow.Enter(ctx), persistence.NewRecorder(store))
	a, _ := core.New(fctx, "first", core.WithID("a"))
	if _, err := core.New(fctx, "second", core.WithID("b"), core.WithDependsOn(a)); err != nil {
		t.Fatal(err)
	}
	if err := persistence.SaveFlow(fctx, store, flow); err != nil {
		t.Fatal(err)
	}

	bus := events.NewEventBus()
	defer bus.Close()
	sub := bus.SubscribeAll(16)
	p := newPoller(store, bus, "demo")

	if err := p.poll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := drain(sub); got[events.EventTypeTaskUpdated] != 2 || got[events.EventTypeFlowProgress] != 1 {
		t.Errorf("first poll published %v", got)
	}

	if err := p.poll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := drain(sub); len(got) != 0 {
		t.Errorf("unchanged store published %v", got)
	}

	if _, err := a.MarkSuccessful(fctx, "done"); err != nil {
		t.Fatal(err)
	}
	flow.AddMessage(fctx, core.Message{TaskID: "a", Role: core.RoleAgent, Content: "finished"})
	if err := p.poll(ctx); err != nil {
		t.Fatal(err)
	}
	got := drain(sub)
	if got[events.EventTypeTaskUpdated] != 1 || got[events.EventTypeFlowMessage] != 1 || got[events.EventTypeFlowProgress] != 1 {
		t.Errorf("second change published %v", got)
	}
}

func drain(sub <-chan events.Event) map[string]int {
	counts := make(map[string]int)
	for {
		select {
		case e := <-sub:
			counts[e.EventType()]++
		default:
			return counts
		}
	}
}

func TestProgressOf(t *testing.T) {
	p := progressOf([]core.Snapshot{
		{Status: core.Successful},
		{Status: core.Failed},
		{Status: core.Incomplete},
		{Status: core.Successful},
	})
	if p.Total != 4 || p.Successful != 2 || p.Failed != 1 || p.Incomplete != 1 || p.Completed() != 3 {
		t.Errorf("progressOf() = %+v", p)
	}
}

// TestShutdownKillsAgentProcesses verifies shutdown terminates tracked
// agent processes.
func TestShutdownKillsAgentProcesses(t *testing.T) {
	pm := backend.NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)
	defer pm.Untrack(cmd)

	shutdown(pm)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after shutdown")
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels correctly when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}
	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
