package core

import "fmt"

// Common errors returned by the runner.
var (
	// ErrCompleted is returned when an operation is invoked after the runner
	// has begun shutting down. Once completed, a runner accepts no new tasks
	// and cannot be restarted; calling Add, Start or CancelCurrentTask at
	// that point is a programming error, surfaced here rather than swallowed.
	ErrCompleted = &RunnerError{msg: "runner has completed"}

	// ErrNilTask is returned when a nil task is submitted.
	ErrNilTask = &RunnerError{msg: "task is nil"}
)

// RunnerError represents an error raised by a background task runner.
// It supports error unwrapping via errors.Unwrap for use with errors.Is.
type RunnerError struct {
	msg string // Human-readable error message
	err error  // Underlying error (if any)
}

// Error returns a formatted error message.
func (e *RunnerError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("bgrunner: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("bgrunner: %s", e.msg)
}

// Unwrap returns the underlying error, allowing use with errors.Is and errors.As.
func (e *RunnerError) Unwrap() error {
	return e.err
}
