// Package session defines the core interfaces for distributing imaging work to
// a pool of workers. It abstracts away the details of local vs. remote
// execution.
//
// A run talks to a Session in five verbs: Scatter a payload once, Submit a
// function against the scattered handle, Wait on a set of tasks, Gather their
// results in submission order and Cancel tasks that are no longer wanted.
// Submissions never block; Wait and Gather are the only barriers.
package session

import (
	"context"
	"log/slog"
	"time"
)

// TaskFunc is the unit of work executed by a worker. It receives the
// scattered payload and must treat it as read-only.
type TaskFunc func(ctx context.Context, payload any) (any, error)

// Handle identifies a scattered payload.
type Handle string

// RetryBudget is the number of attempts a single submission may use before its
// task is marked as failed.
type RetryBudget int

// DefaultRetryBudget matches the attempt budget of the cluster scheduler.
const DefaultRetryBudget RetryBudget = 3

// SubmitOptions tune a single submission.
type SubmitOptions struct {
	// Name labels the task in logs.
	Name string
	// Ordinal is the position of the task in its submission batch. It is kept
	// by any replacement task.
	Ordinal int
	// Retries is the attempt budget; zero selects DefaultRetryBudget.
	Retries RetryBudget
	// Pure allows the session to return an existing task for the same function
	// and handle instead of running it again.
	Pure bool
	// Timeout bounds a single attempt. Zero means no limit.
	Timeout time.Duration
}

// OnError selects how Gather treats tasks that did not complete.
type OnError int

const (
	// OnErrorRaise fails the whole gather if any task failed or was cancelled.
	OnErrorRaise OnError = iota
	// OnErrorSkip omits failed and cancelled tasks from the results.
	OnErrorSkip
)

// Progress counts tasks by status. It is a side channel for observability and
// is never consulted for correctness.
type Progress struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Complete  int `json:"complete"`
	Error     int `json:"error"`
	Cancelled int `json:"cancelled"`
}

// Total returns the number of tasks counted.
func (p Progress) Total() int {
	return p.Pending + p.Running + p.Complete + p.Error + p.Cancelled
}

// Add counts one task in the given status.
func (p *Progress) Add(s Status) {
	switch s {
	case StatusPending:
		p.Pending++
	case StatusRunning:
		p.Running++
	case StatusComplete:
		p.Complete++
	case StatusError:
		p.Error++
	case StatusCancelled:
		p.Cancelled++
	}
}

// Config describes the cluster a session connects to.
type Config struct {
	// Scheduler is the address of the scheduler endpoint.
	Scheduler string
	// Workers is the number of concurrent task slots.
	Workers int
	// WorkerLogger, when set, receives the logs emitted while tasks execute.
	// Otherwise tasks log through the logger of the session context.
	WorkerLogger *slog.Logger
}

// SessionFactory creates a Session. Different implementations can support
// various backends, such as local or distributed execution.
type SessionFactory interface {
	NewSession(ctx context.Context, cfg Config) (Session, error)
}

// Session represents a connection to a worker pool and manages its lifecycle.
type Session interface {
	// Scatter stores a payload once on the cluster and returns its handle.
	Scatter(ctx context.Context, payload any) (Handle, error)
	// Submit schedules fn against a scattered payload and returns at once.
	Submit(ctx context.Context, fn TaskFunc, h Handle, opts SubmitOptions) (*Task, error)
	// Wait blocks until every task is terminal. It only fails if ctx ends.
	Wait(ctx context.Context, tasks []*Task) error
	// Gather waits for the tasks and returns their results in the given order.
	Gather(ctx context.Context, tasks []*Task, onErr OnError) ([]any, error)
	// Release drops scattered payloads that no further task will use.
	// Unknown handles are ignored.
	Release(handles ...Handle)
	// Cancel stops a task. It is safe to call more than once.
	Cancel(t *Task)
	// Progress returns the current status counts.
	Progress() Progress
	// Close releases any resources held by the session. It accepts a context
	// to allow for graceful cleanup operations.
	Close(ctx context.Context) error
}
