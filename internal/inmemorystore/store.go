package inmemorystore

import (
	"context"
	"sync"

	"github.com/vk/dprepgo/internal/session"
	"github.com/vk/dprepgo/internal/taskstore"
)

// Store is an in-memory implementation of taskstore.Store.
//
// The store maintains three independent sync.Maps keyed by task ID:
//   - states: session.Status
//   - outputs: the task result
//   - errors: the final task error
type Store struct {
	states  sync.Map
	outputs sync.Map
	errors  sync.Map
}

// New creates a new, empty in-memory task state store.
func New() taskstore.Store {
	return &Store{}
}

// SetStatus updates the status of a specific task.
func (s *Store) SetStatus(ctx context.Context, id string, status session.Status) error {
	s.states.Store(id, status)
	return nil
}

// GetStatus retrieves the status of a specific task.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, id string) (session.Status, error) {
	status, ok := s.states.Load(id)
	if !ok {
		return session.StatusPending, nil
	}
	return status.(session.Status), nil
}

// SetOutput records the result of a task.
func (s *Store) SetOutput(ctx context.Context, id string, output any) error {
	s.outputs.Store(id, output)
	return nil
}

// GetOutput retrieves the recorded result of a completed task.
func (s *Store) GetOutput(ctx context.Context, id string) (any, error) {
	output, ok := s.outputs.Load(id)
	if !ok {
		return nil, nil
	}
	return output, nil
}

// SetError records the final error of a task.
func (s *Store) SetError(ctx context.Context, id string, taskErr error) error {
	s.errors.Store(id, taskErr)
	return nil
}

// GetError retrieves the recorded error of a failed task.
func (s *Store) GetError(ctx context.Context, id string) (error, error) {
	err, ok := s.errors.Load(id)
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}

// Summary counts recorded tasks by status.
func (s *Store) Summary(ctx context.Context) (session.Progress, error) {
	var p session.Progress
	s.states.Range(func(_, v any) bool {
		p.Add(v.(session.Status))
		return true
	})
	return p, nil
}
