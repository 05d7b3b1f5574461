package socketio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/qa"
)

var _ qa.Publisher = (*Publisher)(nil)

func TestConnect_RejectsURLWithoutHost(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "scheduler:9092", Options{})
	assert.ErrorContains(t, err, "no host")
}

func TestConnect_CancelledContext(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// --- Act ---
	_, err := Connect(ctx, "http://127.0.0.1:1/", Options{ConnectTimeout: 5 * time.Second})

	// --- Assert ---
	require.Error(t, err)
}

func TestConnect_UnreachableTimesOutOrFails(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_, err := Connect(context.Background(), "http://127.0.0.1:1/", Options{ConnectTimeout: 300 * time.Millisecond})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
