package inmemorystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/session"
)

func TestSetAndGetStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Status of a task that was never recorded
	status, err := s.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, status)

	err = s.SetStatus(ctx, "task-1", session.StatusRunning)
	require.NoError(t, err)

	status, err = s.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusRunning, status)
}

func TestSetAndGetOutput(t *testing.T) {
	s := New()
	ctx := context.Background()

	output, err := s.GetOutput(ctx, "task-1")
	require.NoError(t, err)
	assert.Nil(t, output)

	expected := map[string]any{"channel": 3}
	require.NoError(t, s.SetOutput(ctx, "task-1", expected))

	output, err = s.GetOutput(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, expected, output)
}

func TestSetAndGetError(t *testing.T) {
	s := New()
	ctx := context.Background()

	taskErr, err := s.GetError(ctx, "task-1")
	require.NoError(t, err)
	assert.Nil(t, taskErr)

	boom := errors.New("boom")
	require.NoError(t, s.SetError(ctx, "task-1", boom))

	taskErr, err = s.GetError(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, boom, taskErr)
}

func TestSummary_ConcurrentWriters(t *testing.T) {
	s := New()
	ctx := context.Background()

	// --- Arrange ---
	const n = 50
	var wg sync.WaitGroup

	// --- Act ---
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			_ = s.SetStatus(ctx, id, session.StatusRunning)
			if i%5 == 0 {
				_ = s.SetStatus(ctx, id, session.StatusError)
				return
			}
			_ = s.SetStatus(ctx, id, session.StatusComplete)
		}(i)
	}
	wg.Wait()

	// --- Assert ---
	p, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, p.Total())
	assert.Equal(t, 10, p.Error)
	assert.Equal(t, 40, p.Complete)
}
