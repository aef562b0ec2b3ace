package core

import (
	"errors"
	"fmt"

	"github.com/aristath/taskflow/internal/schema"
)

// Error categories. Use errors.Is to tell them apart.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrPrecondition      = errors.New("precondition error")
	ErrValidation        = schema.ErrValidation
	ErrIterationLimit    = errors.New("iteration limit reached")
	ErrTaskFailed        = errors.New("task failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error is a categorized task error. Kind is one of the sentinels above;
// Err optionally carries the underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configErrorf(format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func preconditionErrorf(format string, args ...any) error {
	return &Error{Kind: ErrPrecondition, Msg: fmt.Sprintf(format, args...)}
}
