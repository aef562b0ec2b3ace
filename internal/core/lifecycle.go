package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/taskflow/internal/schema"
)

// SetStatus moves the task to s and notifies the ambient observer.
func (t *Task) SetStatus(ctx context.Context, s Status) error {
	return t.transition(ctx, s, nil)
}

// transition applies a status change, running apply under the task lock
// once the change is known to be allowed.
func (t *Task) transition(ctx context.Context, to Status, apply func()) error {
	t.mu.Lock()
	from := t.status
	if !CanTransition(from, to) {
		t.mu.Unlock()
		return &Error{
			Kind: ErrPrecondition,
			Msg:  fmt.Sprintf("%s cannot move from %s to %s", t.FriendlyName(), from, to),
			Err:  ErrInvalidTransition,
		}
	}
	if apply != nil {
		apply()
	}
	t.status = to
	if to != Successful {
		t.result = nil
	}
	if to != Failed {
		t.errMsg = ""
	}
	t.mu.Unlock()

	if o := ObserverFrom(ctx); o != nil {
		o.UpdateTask(ctx, t)
	}
	return nil
}

// SuccessOption tunes MarkSuccessful.
type SuccessOption func(*successOptions)

type successOptions struct {
	skipUpstreams bool
}

// WithoutUpstreamValidation lets a task succeed while dependencies or
// subtasks are still incomplete.
func WithoutUpstreamValidation() SuccessOption {
	return func(o *successOptions) { o.skipUpstreams = true }
}

// MarkSuccessful validates result against the result type and marks the
// task successful. Unless disabled, every dependency and subtask must be
// complete first. On error the task is left unchanged.
func (t *Task) MarkSuccessful(ctx context.Context, result any, opts ...SuccessOption) (string, error) {
	var o successOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.skipUpstreams {
		if err := t.checkUpstreams(); err != nil {
			return "", err
		}
	}

	validated, err := schema.Validate(t.resultType, result)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.FriendlyName(), err)
	}

	if err := t.transition(ctx, Successful, func() { t.result = validated }); err != nil {
		return "", err
	}
	return t.confirm(ctx, "successful"), nil
}

// checkUpstreams lists every incomplete dependency. Subtasks are always
// dependencies of their parent.
func (t *Task) checkUpstreams() error {
	var blocking []string
	for _, dep := range t.DependsOn() {
		if dep.IsIncomplete() {
			blocking = append(blocking, dep.FriendlyName())
		}
	}
	if len(blocking) > 0 {
		return preconditionErrorf("%s cannot be marked successful until all of its upstream dependencies are completed. Incomplete dependencies are: %s",
			t.FriendlyName(), strings.Join(blocking, ", "))
	}
	return nil
}

// MarkFailed records message and marks the task failed.
func (t *Task) MarkFailed(ctx context.Context, message string) (string, error) {
	if err := t.transition(ctx, Failed, func() { t.errMsg = message }); err != nil {
		return "", err
	}
	return t.confirm(ctx, "failed"), nil
}

// MarkSkipped marks the task skipped.
func (t *Task) MarkSkipped(ctx context.Context) (string, error) {
	if err := t.transition(ctx, Skipped, nil); err != nil {
		return "", err
	}
	return t.confirm(ctx, "skipped"), nil
}

func (t *Task) confirm(ctx context.Context, state string) string {
	if a := AgentFrom(ctx); a != nil && a.Name != "" {
		return fmt.Sprintf("%s marked %s by %s.", t.FriendlyName(), state, a.Name)
	}
	return fmt.Sprintf("%s marked %s.", t.FriendlyName(), state)
}
