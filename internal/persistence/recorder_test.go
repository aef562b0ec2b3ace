package persistence

import (
	"context"
	"testing"

	"github.com/aristath/taskflow/internal/core"
)

// TestRecorderTracksLifecycle verifies status changes and flow messages reach the store.
func TestRecorderTracksLifecycle(t *testing.T) {
	store := testStore(t)
	flow := core.NewFlow("demo", "")
	ctx := core.WithObserver(flow.Enter(context.Background()), NewRecorder(store))

	a, err := core.New(ctx, "first", core.WithID("aaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := core.New(ctx, "second", core.WithID("bbbbb"), core.WithDependsOn(a))
	if err != nil {
		t.Fatal(err)
	}

	if err := SaveFlow(ctx, store, flow); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}
	if _, err := a.MarkSuccessful(ctx, "done"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.MarkFailed(ctx, "no luck"); err != nil {
		t.Fatal(err)
	}
	flow.AddMessage(ctx, core.Message{TaskID: "bbbbb", Role: core.RoleAgent, Content: "trying"})

	snaps, err := store.ListSnapshots(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	got, _ := store.GetSnapshot(ctx, "demo", "aaaaa")
	if got.Status != core.Successful || got.Result != "done" {
		t.Errorf("a: %s %v", got.Status, got.Result)
	}
	got, _ = store.GetSnapshot(ctx, "demo", "bbbbb")
	if got.Status != core.Failed || got.Error != "no luck" {
		t.Errorf("b: %s %q", got.Status, got.Error)
	}

	deps, _ := store.Dependents(ctx, "demo", "aaaaa")
	if len(deps) != 1 || deps[0] != "bbbbb" {
		t.Errorf("expected bbbbb to depend on aaaaa, got %v", deps)
	}

	history, _ := store.GetHistory(ctx, "demo", "bbbbb")
	if len(history) != 1 || history[0].Content != "trying" {
		t.Errorf("unexpected history %+v", history)
	}
}
