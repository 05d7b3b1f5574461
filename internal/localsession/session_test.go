package localsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/inmemorystore"
	"github.com/vk/dprepgo/internal/session"
	"github.com/vk/dprepgo/internal/testutil"
)

func newSession(t *testing.T, workers int) *Session {
	t.Helper()
	s := New(context.Background(), session.Config{Scheduler: "test:8786", Workers: workers}, inmemorystore.New())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func scatterSubmit(t *testing.T, s *Session, fn session.TaskFunc, payload any, opts session.SubmitOptions) *session.Task {
	t.Helper()
	ctx := context.Background()
	h, err := s.Scatter(ctx, payload)
	require.NoError(t, err)
	task, err := s.Submit(ctx, fn, h, opts)
	require.NoError(t, err)
	return task
}

func double(ctx context.Context, payload any) (any, error) {
	n := payload.(int)
	// Later submissions finish first.
	time.Sleep(time.Duration(20-n) * time.Millisecond)
	return n * 2, nil
}

func TestGather_ResultsFollowSubmissionOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := newSession(t, 8)
	var tasks []*session.Task
	for i := 0; i < 20; i++ {
		tasks = append(tasks, scatterSubmit(t, s, double, i, session.SubmitOptions{Name: "double", Ordinal: i}))
	}

	// --- Act ---
	results, err := s.Gather(context.Background(), tasks, session.OnErrorRaise)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i*2, r)
	}
	assert.Equal(t, 20, s.Progress().Complete)
}

func TestSubmit_RetriesWithinBudget(t *testing.T) {
	t.Parallel()

	s := newSession(t, 2)
	script := &testutil.Script{Failures: 2}

	task := scatterSubmit(t, s, script.Run, "payload", session.SubmitOptions{Retries: 3})
	require.NoError(t, s.Wait(context.Background(), []*session.Task{task}))

	assert.Equal(t, session.StatusComplete, task.Status())
	assert.Equal(t, 3, task.Attempts())
	res, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, "payload", res)
}

func TestSubmit_RetriesExhausted(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := newSession(t, 2)
	script := &testutil.Script{Failures: 10}

	// --- Act ---
	task := scatterSubmit(t, s, script.Run, "payload", session.SubmitOptions{Name: "flaky", Ordinal: 7, Retries: 3})
	_, gatherErr := s.Gather(context.Background(), []*session.Task{task}, session.OnErrorRaise)

	// --- Assert ---
	assert.Equal(t, session.StatusError, task.Status())
	assert.Equal(t, 3, script.Calls())

	var execErr *session.TaskExecutionError
	require.True(t, errors.As(task.Err(), &execErr))
	assert.Equal(t, 3, execErr.Attempt)
	assert.Equal(t, 7, execErr.Ordinal)

	var agg *session.AggregateTaskError
	require.True(t, errors.As(gatherErr, &agg))
	assert.Equal(t, 1, s.Progress().Error)
}

func TestSubmit_UnknownHandle(t *testing.T) {
	t.Parallel()

	s := newSession(t, 1)
	_, err := s.Submit(context.Background(), double, "missing", session.SubmitOptions{})
	assert.ErrorIs(t, err, session.ErrUnknownHandle)
}

func TestSubmit_PureReusesTask(t *testing.T) {
	t.Parallel()

	s := newSession(t, 1)
	ctx := context.Background()
	h, err := s.Scatter(ctx, 1)
	require.NoError(t, err)

	a, err := s.Submit(ctx, double, h, session.SubmitOptions{Pure: true})
	require.NoError(t, err)
	b, err := s.Submit(ctx, double, h, session.SubmitOptions{Pure: true})
	require.NoError(t, err)
	c, err := s.Submit(ctx, double, h, session.SubmitOptions{})
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	require.NoError(t, s.Wait(ctx, []*session.Task{a, c}))
}

func TestSubmit_TimeoutCountsAsAttemptError(t *testing.T) {
	t.Parallel()

	s := newSession(t, 1)
	block := func(ctx context.Context, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	task := scatterSubmit(t, s, block, nil, session.SubmitOptions{Retries: 2, Timeout: 10 * time.Millisecond})
	require.NoError(t, s.Wait(context.Background(), []*session.Task{task}))

	assert.Equal(t, session.StatusError, task.Status())
	assert.Equal(t, 2, task.Attempts())
	assert.ErrorIs(t, task.Err(), context.DeadlineExceeded)
}

func TestSubmit_PanicBecomesError(t *testing.T) {
	t.Parallel()

	s := newSession(t, 1)
	explode := func(context.Context, any) (any, error) { panic("kaboom") }

	task := scatterSubmit(t, s, explode, nil, session.SubmitOptions{Retries: 1})
	require.NoError(t, s.Wait(context.Background(), []*session.Task{task}))

	assert.Equal(t, session.StatusError, task.Status())
	assert.Contains(t, task.Err().Error(), "kaboom")
}

func TestCancel_RunningTaskIsIdempotent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := newSession(t, 1)
	started := make(chan struct{})
	observed := make(chan error, 1)
	block := func(ctx context.Context, _ any) (any, error) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
		return nil, ctx.Err()
	}
	task := scatterSubmit(t, s, block, nil, session.SubmitOptions{Retries: 1})
	<-started

	// --- Act ---
	s.Cancel(task)
	s.Cancel(task)

	// --- Assert ---
	require.NoError(t, s.Wait(context.Background(), []*session.Task{task}))
	assert.Equal(t, session.StatusCancelled, task.Status())
	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task function never observed cancellation")
	}
	assert.Equal(t, 1, s.Progress().Cancelled)
}

func TestClose_CancelsRunningTask(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := New(context.Background(), session.Config{Workers: 1}, inmemorystore.New())
	started := make(chan struct{})
	block := func(ctx context.Context, _ any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	task := scatterSubmit(t, s, block, nil, session.SubmitOptions{Retries: 3})
	<-started

	// --- Act ---
	require.NoError(t, s.Close(context.Background()))

	// --- Assert ---
	require.NoError(t, s.Wait(context.Background(), []*session.Task{task}))
	assert.Equal(t, session.StatusCancelled, task.Status())
	assert.ErrorIs(t, task.Err(), session.ErrCancelled)
	assert.Equal(t, 1, task.Attempts())
	assert.Equal(t, 1, s.Progress().Cancelled)
	assert.Zero(t, s.Progress().Error)
}

func TestRelease_DropsPayloadAndPureTask(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := newSession(t, 1)
	ctx := context.Background()
	h, err := s.Scatter(ctx, 4)
	require.NoError(t, err)
	kept, err := s.Scatter(ctx, 5)
	require.NoError(t, err)
	task, err := s.Submit(ctx, double, h, session.SubmitOptions{Pure: true})
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx, []*session.Task{task}))

	// --- Act ---
	s.Release(h, h, "missing")

	// --- Assert ---
	assert.Equal(t, 1, s.Scattered())
	_, err = s.Submit(ctx, double, h, session.SubmitOptions{Pure: true})
	assert.ErrorIs(t, err, session.ErrUnknownHandle)
	res, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, 8, res)
	_, err = s.Submit(ctx, double, kept, session.SubmitOptions{})
	assert.NoError(t, err)
}

func TestClose_RejectsNewWork(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), session.Config{Workers: 1}, inmemorystore.New())
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	_, err := s.Scatter(context.Background(), 1)
	assert.ErrorIs(t, err, session.ErrClosed)
}

func TestSessionFactory_DefaultsStore(t *testing.T) {
	t.Parallel()

	f := &SessionFactory{}
	sess, err := f.NewSession(context.Background(), session.Config{})
	require.NoError(t, err)
	defer sess.Close(context.Background())

	task := scatterSubmit(t, sess.(*Session), double, 3, session.SubmitOptions{})
	res, err := sess.Gather(context.Background(), []*session.Task{task}, session.OnErrorRaise)
	require.NoError(t, err)
	assert.Equal(t, []any{6}, res)
}
