package core

// Status is the lifecycle state of a task.
type Status string

const (
	Incomplete Status = "INCOMPLETE" // Initial state
	Successful Status = "SUCCESSFUL" // Completed with a validated result
	Failed     Status = "FAILED"     // Completed with an error message
	Skipped    Status = "SKIPPED"    // Completed without running
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case Incomplete, Successful, Failed, Skipped:
		return true
	}
	return false
}

// IsTerminal reports whether s is a completed state.
func (s Status) IsTerminal() bool {
	return s == Successful || s == Failed || s == Skipped
}

// CanTransition reports whether a task in state from may move to state to.
// Re-applying the current state is allowed; a terminal state never changes
// into a different one.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return from == Incomplete
}
