// Package monitor supervises a batch of submitted tasks and gives failed ones
// a bounded number of fresh starts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/session"
)

// DefaultResubmissions is the number of resubmission passes of a run.
const DefaultResubmissions = 1

// Options configures a Monitor.
type Options struct {
	// Resubmissions is the number of passes over failed tasks. Negative
	// values are treated as zero.
	Resubmissions int
	// Retries is the attempt budget given to every replacement task.
	Retries session.RetryBudget
	// Timeout bounds each attempt of a replacement task.
	Timeout time.Duration
}

// Monitor resubmits failed tasks of one function.
type Monitor struct {
	sess session.Session
	fn   session.TaskFunc
	opts Options
}

// New creates a monitor that resubmits fn on sess.
func New(sess session.Session, fn session.TaskFunc, opts Options) *Monitor {
	if opts.Resubmissions < 0 {
		opts.Resubmissions = 0
	}
	return &Monitor{sess: sess, fn: fn, opts: opts}
}

// Supervise waits for tasks and, for each resubmission pass, replaces every
// task in error with a fresh submission against the same payload. The
// replacement keeps the ordinal and index of the task it replaces, so tasks
// stays in submission order. It waits again after the last pass and returns
// the number of replacements made. Tasks that still fail are left in place
// for the caller's gather to report.
func (m *Monitor) Supervise(ctx context.Context, tasks []*session.Task) (int, error) {
	logger := ctxlog.FromContext(ctx)
	if err := m.sess.Wait(ctx, tasks); err != nil {
		return 0, err
	}

	replaced := 0
	for pass := 1; pass <= m.opts.Resubmissions; pass++ {
		var failed int
		for i, t := range tasks {
			if t.Status() != session.StatusError {
				continue
			}
			failed++
			logger.Warn("🩺 Task failed, resubmitting.",
				"pass", pass,
				"task", t.ID(),
				"name", t.Name(),
				"ordinal", t.Ordinal(),
				"attempts", t.Attempts(),
				"error", t.Err(),
			)
			m.sess.Cancel(t)
			nt, err := m.sess.Submit(ctx, m.fn, t.Handle(), session.SubmitOptions{
				Name:    t.Name(),
				Ordinal: t.Ordinal(),
				Retries: m.opts.Retries,
				Timeout: m.opts.Timeout,
			})
			if err != nil {
				return replaced, fmt.Errorf("resubmit %q (ordinal %d): %w", t.Name(), t.Ordinal(), err)
			}
			tasks[i] = nt
			replaced++
		}
		if failed == 0 {
			break
		}
		logger.Info("Resubmission pass complete.", "pass", pass, "resubmitted", failed)
		if err := m.sess.Wait(ctx, tasks); err != nil {
			return replaced, err
		}
	}
	return replaced, nil
}
