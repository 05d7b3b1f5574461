package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Task.
type Status int32

const (
	// StatusPending indicates the task is queued for a worker.
	StatusPending Status = iota
	// StatusRunning indicates a worker is executing the task.
	StatusRunning
	// StatusComplete indicates the task produced a result.
	StatusComplete
	// StatusError indicates the task used its whole retry budget.
	StatusError
	// StatusCancelled indicates the task was cancelled; any result is discarded.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// IsTerminal reports whether no further transition is expected without an
// explicit Cancel.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// Task is a handle on one submitted unit of work.
type Task struct {
	id      string
	name    string
	ordinal int
	handle  Handle

	state    atomic.Int32
	attempts atomic.Int32

	mu     sync.Mutex
	result any
	err    error
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
	observer func(Transition)
}

// Transition describes a state change of a task as seen by an observer.
type Transition struct {
	TaskID string
	Status Status
	Result any
	Err    error
}

// NewTask creates a pending task. Session implementations call it on Submit.
func NewTask(name string, ordinal int, h Handle) *Task {
	return &Task{
		id:      uuid.NewString(),
		name:    name,
		ordinal: ordinal,
		handle:  h,
		done:    make(chan struct{}),
	}
}

// SetObserver registers fn to be called on every transition, before Done is
// closed. It must be called before the task is shared, and fn must not call
// back into the task.
func (t *Task) SetObserver(fn func(Transition)) {
	t.observer = fn
}

// ID returns the unique identity of this task.
func (t *Task) ID() string { return t.id }

// Name returns the label given at submission.
func (t *Task) Name() string { return t.name }

// Ordinal returns the position of the task in its submission batch.
func (t *Task) Ordinal() int { return t.ordinal }

// Handle returns the scattered payload the task runs against.
func (t *Task) Handle() Handle { return t.handle }

// Status atomically retrieves the task's state.
func (t *Task) Status() Status { return Status(t.state.Load()) }

// Attempts returns how many attempts have been started.
func (t *Task) Attempts() int { return int(t.attempts.Load()) }

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the result and error recorded for the task.
func (t *Task) Result() (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

func (t *Task) snapshot() (Status, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status(), t.result, t.err
}

// Err returns the recorded error, ErrCancelled for a cancelled task.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Start moves a pending task to running and records the function that
// cancels its attempt context. It returns false if the task was cancelled
// while queued.
func (t *Task) Start(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status() != StatusPending {
		return false
	}
	t.cancel = cancel
	t.state.Store(int32(StatusRunning))
	t.notify()
	return true
}

// BeginAttempt counts a new attempt and returns its 1-based number.
func (t *Task) BeginAttempt() int {
	return int(t.attempts.Add(1))
}

// Complete records a result. It returns false if the task is no longer
// running, in which case the result is discarded.
func (t *Task) Complete(result any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status() != StatusRunning {
		return false
	}
	t.result = result
	t.state.Store(int32(StatusComplete))
	t.notify()
	t.finish()
	return true
}

// Fail records the final error of a task that exhausted its budget.
func (t *Task) Fail(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status() != StatusRunning {
		return false
	}
	t.err = err
	t.state.Store(int32(StatusError))
	t.notify()
	t.finish()
	return true
}

// Cancel moves the task to cancelled from any other state, discards its
// result and cancels an in-flight attempt. It returns true on the first call
// only.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status() == StatusCancelled {
		return false
	}
	t.state.Store(int32(StatusCancelled))
	t.result = nil
	t.err = ErrCancelled
	if t.cancel != nil {
		t.cancel()
	}
	t.notify()
	t.finish()
	return true
}

// notify must be called with t.mu held.
func (t *Task) notify() {
	if t.observer == nil {
		return
	}
	t.observer(Transition{TaskID: t.id, Status: t.Status(), Result: t.result, Err: t.err})
}

func (t *Task) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}
