package schema

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrUnsupportedType = errors.New("unsupported result type")
)

// ValidationError reports a candidate value that does not conform to its
// result type and cannot be coerced.
type ValidationError struct {
	Path string // e.g. "result.items[2]"
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Msg)
	}
	return fmt.Sprintf("%s at %s: %s", ErrValidation, e.Path, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidf(path, format string, args ...any) error {
	return &ValidationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedType, fmt.Sprintf(format, args...))
}
