package session

import "context"

// WaitAll blocks until every task is done or ctx ends. Implementations of
// Session.Wait share it.
func WaitAll(ctx context.Context, tasks []*Task) error {
	for _, t := range tasks {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Collect reads the results of terminal tasks in order. Under OnErrorRaise a
// single failed or cancelled task yields an *AggregateTaskError and no
// results.
func Collect(tasks []*Task, onErr OnError) ([]any, error) {
	results := make([]any, 0, len(tasks))
	var failures []TaskFailure
	for _, t := range tasks {
		st, res, err := t.snapshot()
		if st != StatusComplete {
			failures = append(failures, TaskFailure{
				TaskID:  t.ID(),
				Name:    t.Name(),
				Ordinal: t.Ordinal(),
				Status:  st,
				Err:     err,
			})
			continue
		}
		results = append(results, res)
	}
	if len(failures) > 0 && onErr == OnErrorRaise {
		return nil, &AggregateTaskError{Total: len(tasks), Failures: failures}
	}
	return results, nil
}

// GatherAll is WaitAll followed by Collect.
func GatherAll(ctx context.Context, tasks []*Task, onErr OnError) ([]any, error) {
	if err := WaitAll(ctx, tasks); err != nil {
		return nil, err
	}
	return Collect(tasks, onErr)
}
