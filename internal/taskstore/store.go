// Package taskstore defines the interface for recording the mutable execution
// state of tasks while a session runs.
//
// # Why a Task Store Exists
//
// A session.Task already carries its own status for the caller that holds it.
// The store is the session-wide view of the same transitions: every task a
// session ever ran, including tasks the fault monitor cancelled and replaced.
// The health server reads progress from it without touching the task handles,
// and an alternative backend can make the view visible outside the process.
//
// # Lifecycle and Usage
//
// The store is:
//  1. **Created** once per session (ephemeral, not persistent across runs)
//  2. **Mutated** by the session workers as tasks change state
//  3. **Queried** by observability code through Summary
//  4. **Discarded** when the session ends
//
// # State Transitions
//
// Tasks follow this lifecycle:
//
//	Pending → Running → Complete (with output) OR Error (with error)
//
// and may move to Cancelled from any state.
package taskstore

import (
	"context"

	"github.com/vk/dprepgo/internal/session"
)

// Store is the interface for managing the mutable execution state of tasks.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads and writes, as every
// worker of a session records transitions in parallel.
type Store interface {
	// SetStatus records the current status of a task.
	SetStatus(ctx context.Context, id string, status session.Status) error

	// GetStatus returns StatusPending if no status was recorded for the task.
	GetStatus(ctx context.Context, id string) (session.Status, error)

	// SetOutput records the result of a completed task.
	SetOutput(ctx context.Context, id string, output any) error

	// GetOutput returns nil if the task has not completed.
	GetOutput(ctx context.Context, id string) (any, error)

	// SetError records the final error of a failed task.
	SetError(ctx context.Context, id string, taskErr error) error

	// GetError returns nil if the task did not fail.
	GetError(ctx context.Context, id string) (error, error)

	// Summary counts every recorded task by status.
	Summary(ctx context.Context) (session.Progress, error)
}
