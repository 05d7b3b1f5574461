package localsession

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/session"
)

// dispatch moves submissions from incoming to the workers through an
// unbounded queue, so Submit never waits for a free worker.
func (s *Session) dispatch() {
	var queue []*job
	for {
		var out chan *job
		var next *job
		if len(queue) > 0 {
			out = s.ready
			next = queue[0]
		}
		select {
		case j, ok := <-s.incoming:
			if !ok {
				for _, j := range queue {
					s.Cancel(j.task)
				}
				close(s.ready)
				return
			}
			queue = append(queue, j)
		case out <- next:
			queue[0] = nil
			queue = queue[1:]
		}
	}
}

// worker is the core processing loop for a single concurrent worker.
func (s *Session) worker(ctx context.Context, workerID int) {
	defer s.workers.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for j := range s.ready {
		if ctx.Err() != nil {
			s.Cancel(j.task)
			continue
		}
		s.run(ctx, j, workerID)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// run executes one task, retrying failed attempts until the budget is spent.
func (s *Session) run(ctx context.Context, j *job, workerID int) {
	t := j.task
	taskLogger := s.workerLogger.With("workerID", workerID, "task", t.ID(), "name", t.Name(), "ordinal", t.Ordinal())

	attemptCtx, cancel := context.WithCancel(ctxlog.WithLogger(ctx, taskLogger))
	defer cancel()
	if !t.Start(cancel) {
		taskLogger.Debug("Task was cancelled before it started.")
		return
	}
	taskLogger.Debug("Worker picked up task for execution.")

	budget := j.opts.Retries
	if budget <= 0 {
		budget = session.DefaultRetryBudget
	}

	var lastErr error
	for attempt := 1; attempt <= int(budget); attempt++ {
		if attemptCtx.Err() != nil {
			break
		}
		n := t.BeginAttempt()
		result, err := s.attempt(attemptCtx, j, taskLogger)
		if err == nil {
			if t.Complete(result) {
				taskLogger.Debug("Task execution succeeded.", "attempts", n)
			}
			return
		}
		if attemptCtx.Err() != nil {
			break
		}
		lastErr = &session.TaskExecutionError{
			TaskID:  t.ID(),
			Name:    t.Name(),
			Ordinal: t.Ordinal(),
			Attempt: n,
			Err:     err,
		}
		taskLogger.Warn("Task attempt failed.", "attempt", n, "budget", int(budget), "error", err)
	}

	// A closed session or a cancelled task is not a failure of the task.
	if attemptCtx.Err() != nil {
		s.Cancel(t)
		return
	}
	if t.Fail(lastErr) {
		taskLogger.Error("Task execution failed.", "attempts", t.Attempts(), "error", lastErr)
	}
}

// attempt runs the task function once. A panic is converted into an error
// and the attempt ends as soon as its context does, even if the function
// ignores cancellation.
func (s *Session) attempt(ctx context.Context, j *job, logger *slog.Logger) (any, error) {
	if j.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.Timeout)
		defer cancel()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Task panicked.", "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		res, err := j.fn(ctx, j.payload)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
