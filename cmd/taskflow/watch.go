package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/persistence"
	"github.com/aristath/taskflow/internal/tui"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <flow>",
	Short: "Follow a recorded flow on the dashboard",
	Long: `Watch polls the store a run is recording to (see "run --db") and shows
the flow's tasks, history and progress on the live dashboard.`,
	Args: cobra.ExactArgs(1),
	RunE: watchCommand,
}

func init() {
	watchCmd.Flags().StringVar(&dbPath, "db", "", "SQLite file the run records to (defaults to store_path)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "How often to poll the store")
}

// poller publishes what changed in a stored flow since the previous poll.
type poller struct {
	store    persistence.Store
	bus      *events.EventBus
	flow     string
	seen     map[string]string // task id -> encoded snapshot
	messages int
}

func newPoller(store persistence.Store, bus *events.EventBus, flow string) *poller {
	return &poller{store: store, bus: bus, flow: flow, seen: make(map[string]string)}
}

// poll publishes a TaskUpdatedEvent per new or changed snapshot, a
// FlowMessageEvent per new message and, when any task changed, a
// FlowProgressEvent.
func (p *poller) poll(ctx context.Context) error {
	snaps, err := p.store.ListSnapshots(ctx, p.flow)
	if err != nil {
		return err
	}
	now := time.Now()

	changed := false
	for _, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", snap.ID, err)
		}
		if p.seen[snap.ID] == string(data) {
			continue
		}
		p.seen[snap.ID] = string(data)
		changed = true
		p.bus.Publish(events.TopicTask, events.TaskUpdatedEvent{Snapshot: snap, Timestamp: now})
	}

	history, err := p.store.GetHistory(ctx, p.flow, "")
	if err != nil {
		return err
	}
	for _, m := range history[min(p.messages, len(history)):] {
		p.bus.Publish(events.TopicFlow, events.FlowMessageEvent{Flow: p.flow, Message: m, Timestamp: now})
	}
	p.messages = len(history)

	if changed {
		p.bus.Publish(events.TopicFlow, events.FlowProgressEvent{Flow: p.flow, Progress: progressOf(snaps), Timestamp: now})
	}
	return nil
}

// run polls every interval until ctx is cancelled. Poll failures are
// logged and retried on the next tick.
func (p *poller) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			log.Printf("WARNING: polling flow %s: %v", p.flow, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func progressOf(snaps []core.Snapshot) core.Progress {
	p := core.Progress{Total: len(snaps)}
	for _, s := range snaps {
		switch s.Status {
		case core.Incomplete:
			p.Incomplete++
		case core.Successful:
			p.Successful++
		case core.Failed:
			p.Failed++
		case core.Skipped:
			p.Skipped++
		}
	}
	return p
}

func watchCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, globalPath, err := loadConfig()
	if err != nil {
		return err
	}
	path := dbPath
	if path == "" {
		path = cfg.StorePath
	}
	if path == "" {
		return fmt.Errorf("no store to watch: pass --db or set store_path")
	}

	store, err := persistence.NewSQLiteStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.NewEventBus()
	defer bus.Close()

	// Subscribe before polling starts so the first snapshot is not dropped.
	program := tea.NewProgram(tui.New(bus, cfg, globalPath, configPath), tea.WithAltScreen())
	go newPoller(store, bus, args[0]).run(ctx, watchInterval)

	uiErr := make(chan error, 1)
	go func() {
		_, err := program.Run()
		uiErr <- err
	}()

	select {
	case err := <-uiErr:
		return err
	case <-ctx.Done():
		stop()
		program.Quit()
		waitForUI(uiErr)
	}
	return nil
}
