package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownHandle is returned by Submit for a handle that was never scattered.
	ErrUnknownHandle = errors.New("unknown scatter handle")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrCancelled is the error recorded on a cancelled task.
	ErrCancelled = errors.New("task cancelled")
)

// TaskExecutionError describes one failed attempt of a task.
type TaskExecutionError struct {
	TaskID  string
	Name    string
	Ordinal int
	Attempt int
	Err     error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q (ordinal %d) attempt %d: %v", e.Name, e.Ordinal, e.Attempt, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// TaskFailure is one entry of an AggregateTaskError.
type TaskFailure struct {
	TaskID  string
	Name    string
	Ordinal int
	Status  Status
	Err     error
}

// AggregateTaskError is returned by a raising Gather when at least one task
// failed or was cancelled. No results are returned alongside it.
type AggregateTaskError struct {
	Total    int
	Failures []TaskFailure
}

func (e *AggregateTaskError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("0 of %d tasks failed", e.Total)
	}
	first := e.Failures[0]
	return fmt.Sprintf("%d of %d tasks failed; first: %q (ordinal %d, %s): %v",
		len(e.Failures), e.Total, first.Name, first.Ordinal, first.Status, first.Err)
}

// Unwrap exposes every underlying task error to errors.Is and errors.As.
func (e *AggregateTaskError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
