package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aristath/taskflow/internal/schema"
)

func mustTask(t *testing.T, ctx context.Context, objective string, opts ...Option) *Task {
	t.Helper()
	task, err := New(ctx, objective, opts...)
	if err != nil {
		t.Fatalf("New(%q) error = %v", objective, err)
	}
	return task
}

// TestNewDefaults verifies the initial state of a freshly created task.
func TestNewDefaults(t *testing.T) {
	task := mustTask(t, context.Background(), "write a haiku")

	if len(task.ID()) != 5 {
		t.Errorf("expected a 5 character id, got %q", task.ID())
	}
	if task.Status() != Incomplete {
		t.Errorf("expected INCOMPLETE, got %s", task.Status())
	}
	if !task.IsReady() {
		t.Error("a task without dependencies should be ready")
	}
	if task.ResultType() != schema.String() {
		t.Errorf("expected default result type string, got %s", task.ResultType())
	}
	if task.Result() != nil || task.ErrorMessage() != "" {
		t.Error("expected no result and no error")
	}
	if task.CreatedAt().IsZero() {
		t.Error("expected creation time to be set")
	}
}

// TestNewConfigurationErrors tests construction-time rejections.
func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name      string
		objective string
		opts      []Option
	}{
		{name: "empty objective", objective: "  "},
		{name: "empty agent list", objective: "x", opts: []Option{WithAgents()}},
		{name: "nil agent", objective: "x", opts: []Option{WithAgents(nil)}},
		{
			name:      "unsupported result type",
			objective: "x",
			opts:      []Option{WithResultType(schema.Custom("widget", nil, schema.Constructor{}))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.objective, tt.opts...)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNewUnsupportedResultTypeKeepsCause(t *testing.T) {
	_, err := New(context.Background(), "x", WithResultType(schema.Custom("widget", nil, schema.Constructor{})))
	if !errors.Is(err, schema.ErrUnsupportedType) {
		t.Errorf("expected the schema error to be wrapped, got %v", err)
	}
}

func TestNewParentFromScope(t *testing.T) {
	ctx := context.Background()
	parent := mustTask(t, ctx, "parent")

	var child *Task
	err := Scope(ctx, parent, func(ctx context.Context) error {
		child = mustTask(t, ctx, "child")
		return nil
	})
	if err != nil {
		t.Fatalf("Scope() error = %v", err)
	}

	if child.Parent() != parent {
		t.Fatalf("expected parent to be set from scope")
	}
	if subs := parent.Subtasks(); len(subs) != 1 || subs[0] != child {
		t.Errorf("expected child in subtasks, got %v", subs)
	}
	if deps := parent.DependsOn(); len(deps) != 1 || deps[0] != child {
		t.Errorf("expected child in depends_on, got %v", deps)
	}
	if downs := child.Downstreams(); len(downs) != 1 || downs[0] != parent {
		t.Errorf("expected parent in child downstreams, got %v", downs)
	}
}

func TestNestedScopesUseInnermostTask(t *testing.T) {
	ctx := context.Background()
	outer := mustTask(t, ctx, "outer")
	inner := mustTask(t, ctx, "inner")

	ctx = outer.Enter(ctx)
	ctx = inner.Enter(ctx)
	ctx = outer.Enter(ctx)

	if got := CurrentTask(ctx); got != outer {
		t.Errorf("expected re-entered outer task to be current, got %v", got)
	}
	if n := len(TaskStack(ctx)); n != 3 {
		t.Errorf("expected 3 scopes, got %d", n)
	}
}

func TestNewAppendsAmbientInstructions(t *testing.T) {
	ctx := WithInstructions(context.Background(), "be brief")
	ctx = WithInstructions(ctx, "use British spelling")

	task := mustTask(t, ctx, "summarise", WithTaskInstructions("cite sources"))

	want := "cite sources\nbe brief\nuse British spelling"
	if task.Instructions() != want {
		t.Errorf("instructions = %q, want %q", task.Instructions(), want)
	}
}

func TestNewFoldsContextTasks(t *testing.T) {
	ctx := context.Background()
	a := mustTask(t, ctx, "a")
	b := mustTask(t, ctx, "b")
	c := mustTask(t, ctx, "c")

	task := mustTask(t, ctx, "combine", WithContext(map[string]any{
		"first":  a,
		"nested": map[string]any{"list": []any{b, "plain"}},
		"many":   []*Task{c},
	}), WithDependsOn(a))

	deps := task.DependsOn()
	if len(deps) != 3 {
		t.Fatalf("expected 3 dependencies, got %d", len(deps))
	}
	for _, dep := range []*Task{a, b, c} {
		found := false
		for _, d := range deps {
			if d == dep {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in depends_on", dep)
		}
		if downs := dep.Downstreams(); len(downs) != 1 || downs[0] != task {
			t.Errorf("expected %s to list the task downstream, got %v", dep, downs)
		}
	}
}

func TestNewRegistersWithFlow(t *testing.T) {
	flow := NewFlow("demo", "")
	ctx := flow.Enter(context.Background())

	task := mustTask(t, ctx, "registered", WithID("t1"))
	if got, ok := flow.Task("t1"); !ok || got != task {
		t.Fatalf("expected task to be registered with the flow")
	}

	_, err := New(ctx, "duplicate", WithID("t1"))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected duplicate id to be rejected, got %v", err)
	}
	if len(flow.Tasks()) != 1 {
		t.Errorf("expected the rejected task not to be registered")
	}
}

func TestFriendlyName(t *testing.T) {
	short := mustTask(t, context.Background(), "sum", WithID("abcde"))
	if got := short.FriendlyName(); got != `Task abcde ("sum")` {
		t.Errorf("FriendlyName() = %s", got)
	}

	long := mustTask(t, context.Background(), strings.Repeat("x", 60), WithID("fghij"))
	want := `Task fghij ("` + strings.Repeat("x", 50) + `...")`
	if got := long.FriendlyName(); got != want {
		t.Errorf("FriendlyName() = %s, want %s", got, want)
	}
}
