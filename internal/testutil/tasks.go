package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/dprepgo/internal/session"
)

// Script is a task function that fails a fixed number of matching calls
// before delegating to Fn.
type Script struct {
	// Fn produces the result once the failures are used up. When nil the
	// payload is returned unchanged.
	Fn session.TaskFunc
	// Failures is how many matching calls fail.
	Failures int
	// Match selects the payloads that may fail. Nil matches every payload.
	Match func(payload any) bool

	mu     sync.Mutex
	calls  int
	failed int
}

// Run implements session.TaskFunc.
func (s *Script) Run(ctx context.Context, payload any) (any, error) {
	s.mu.Lock()
	s.calls++
	fail := (s.Match == nil || s.Match(payload)) && s.failed < s.Failures
	if fail {
		s.failed++
	}
	n := s.failed
	s.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("scripted failure %d", n)
	}
	if s.Fn == nil {
		return payload, nil
	}
	return s.Fn(ctx, payload)
}

// Calls returns how many times Run was invoked.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Failed returns how many calls failed on purpose.
func (s *Script) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
