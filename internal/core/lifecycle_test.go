package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/aristath/taskflow/internal/schema"
)

type recordingObserver struct {
	mu      sync.Mutex
	updates []Status
}

func (r *recordingObserver) UpdateTask(_ context.Context, t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, t.Status())
}

func (r *recordingObserver) seen() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.updates...)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{Incomplete, Successful, true},
		{Incomplete, Failed, true},
		{Incomplete, Skipped, true},
		{Incomplete, Incomplete, true},
		{Skipped, Skipped, true},
		{Successful, Failed, false},
		{Failed, Successful, false},
		{Skipped, Incomplete, false},
		{Incomplete, Status("RUNNING"), false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMarkSuccessfulInteger(t *testing.T) {
	task := mustTask(t, context.Background(), "sum", WithResultType(schema.Int()))

	msg, err := task.MarkSuccessful(context.Background(), 5)
	if err != nil {
		t.Fatalf("MarkSuccessful() error = %v", err)
	}
	if task.Status() != Successful {
		t.Errorf("expected SUCCESSFUL, got %s", task.Status())
	}
	if task.Result() != 5 {
		t.Errorf("expected result 5, got %v", task.Result())
	}
	if !strings.Contains(msg, "marked successful") {
		t.Errorf("unexpected confirmation %q", msg)
	}
}

func TestMarkSuccessfulRoundTrip(t *testing.T) {
	typ := schema.Object(
		schema.Field{Name: "count", Type: schema.Int()},
		schema.Field{Name: "scores", Type: schema.List(schema.Int())},
	)
	task := mustTask(t, context.Background(), "tally", WithResultType(typ))

	value := map[string]any{"count": 2, "scores": []any{7, 9}}
	if _, err := task.MarkSuccessful(context.Background(), value); err != nil {
		t.Fatalf("MarkSuccessful() error = %v", err)
	}
	if !reflect.DeepEqual(task.Result(), value) {
		t.Errorf("Result() = %#v, want %#v", task.Result(), value)
	}
}

func TestMarkSuccessfulNoResultType(t *testing.T) {
	ctx := context.Background()
	task := mustTask(t, ctx, "side effect", WithResultType(schema.None()))

	_, err := task.MarkSuccessful(ctx, "unexpected")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if task.Status() != Incomplete {
		t.Errorf("failed validation must not change status, got %s", task.Status())
	}

	if _, err := task.MarkSuccessful(ctx, nil); err != nil {
		t.Fatalf("MarkSuccessful(nil) error = %v", err)
	}
	if task.Result() != nil {
		t.Errorf("expected nil result, got %v", task.Result())
	}
}

func TestMarkSuccessfulEnumeration(t *testing.T) {
	ctx := context.Background()
	task := mustTask(t, ctx, "choose", WithResultType(schema.Enum("a", "b")))

	if _, err := task.MarkSuccessful(ctx, "c"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for c, got %v", err)
	}
	if task.Status() != Incomplete {
		t.Fatalf("expected INCOMPLETE after rejected result, got %s", task.Status())
	}
	if _, err := task.MarkSuccessful(ctx, "a"); err != nil {
		t.Fatalf("MarkSuccessful(a) error = %v", err)
	}
	if task.Result() != "a" {
		t.Errorf("expected a, got %v", task.Result())
	}
}

func TestMarkSuccessfulWithIncompleteDependency(t *testing.T) {
	ctx := context.Background()
	dep := mustTask(t, ctx, "fetch data", WithID("dep01"))
	task := mustTask(t, ctx, "analyse", WithDependsOn(dep))

	_, err := task.MarkSuccessful(ctx, "done")
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if !strings.Contains(err.Error(), `Task dep01 ("fetch data")`) {
		t.Errorf("error should name the blocking task: %v", err)
	}
	if task.Status() != Incomplete {
		t.Errorf("expected INCOMPLETE, got %s", task.Status())
	}

	if _, err := task.MarkSuccessful(ctx, "done", WithoutUpstreamValidation()); err != nil {
		t.Errorf("expected upstream validation to be skippable, got %v", err)
	}
}

func TestMarkSuccessfulWithIncompleteSubtask(t *testing.T) {
	ctx := context.Background()
	p := mustTask(t, ctx, "parent", WithResultType(schema.None()))
	c := mustTask(t, ctx, "child", WithParent(p), WithID("child"))

	_, err := p.MarkSuccessful(ctx, nil)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if !strings.Contains(err.Error(), c.FriendlyName()) {
		t.Errorf("error should mention the subtask: %v", err)
	}
	if p.Status() != Incomplete {
		t.Errorf("expected INCOMPLETE, got %s", p.Status())
	}
}

func TestMarkFailedAndSkipped(t *testing.T) {
	ctx := context.Background()

	failed := mustTask(t, ctx, "fail me")
	if _, err := failed.MarkFailed(ctx, "no data"); err != nil {
		t.Fatal(err)
	}
	if failed.Status() != Failed || failed.ErrorMessage() != "no data" || failed.Result() != nil {
		t.Errorf("unexpected failed state: %s %q %v", failed.Status(), failed.ErrorMessage(), failed.Result())
	}

	skipped := mustTask(t, ctx, "skip me")
	for i := 0; i < 2; i++ {
		if _, err := skipped.MarkSkipped(ctx); err != nil {
			t.Fatalf("MarkSkipped() call %d error = %v", i+1, err)
		}
		if skipped.Status() != Skipped {
			t.Errorf("expected SKIPPED, got %s", skipped.Status())
		}
	}
}

func TestTerminalStatusCannotChange(t *testing.T) {
	ctx := context.Background()
	task := mustTask(t, ctx, "done")
	if _, err := task.MarkSuccessful(ctx, "ok"); err != nil {
		t.Fatal(err)
	}

	_, err := task.MarkFailed(ctx, "too late")
	if !errors.Is(err, ErrInvalidTransition) || !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected an invalid transition precondition error, got %v", err)
	}
	if task.Status() != Successful || task.Result() != "ok" {
		t.Errorf("rejected transition changed state: %s %v", task.Status(), task.Result())
	}
	if err := task.SetStatus(ctx, Incomplete); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected reset to INCOMPLETE to be rejected, got %v", err)
	}
}

func TestStatusChangesNotifyObserver(t *testing.T) {
	obs := &recordingObserver{}
	ctx := WithObserver(context.Background(), obs)

	a := mustTask(t, ctx, "a")
	b := mustTask(t, ctx, "b")
	if _, err := a.MarkSuccessful(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.MarkFailed(ctx, "y"); err != nil {
		t.Fatal(err)
	}
	_, _ = b.MarkSuccessful(ctx, "z")

	want := []Status{Successful, Failed}
	if got := obs.seen(); !reflect.DeepEqual(got, want) {
		t.Errorf("observer saw %v, want %v", got, want)
	}
}

func TestConfirmationNamesAgent(t *testing.T) {
	ctx := WithAgent(context.Background(), &Agent{Name: "marvin"})
	task := mustTask(t, ctx, "sum", WithID("abcde"))

	msg, err := task.MarkSkipped(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := `Task abcde ("sum") marked skipped by marvin.`; msg != want {
		t.Errorf("confirmation = %q, want %q", msg, want)
	}
}
