// Package localsession provides a concrete implementation of the
// session.Session and session.SessionFactory interfaces for local,
// in-process execution on a fixed pool of worker goroutines.
package localsession

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/inmemorystore"
	"github.com/vk/dprepgo/internal/session"
	"github.com/vk/dprepgo/internal/taskstore"
)

// DefaultWorkers is used when the configuration does not size the pool.
const DefaultWorkers = 4

// SessionFactory implements session.SessionFactory for local runs.
type SessionFactory struct {
	// Store receives task transitions. A fresh in-memory store is used when nil.
	Store taskstore.Store
}

// NewSession creates a session and starts its workers.
func (f *SessionFactory) NewSession(ctx context.Context, cfg session.Config) (session.Session, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("localsession.SessionFactory.NewSession called", "scheduler", cfg.Scheduler, "workers", cfg.Workers)

	store := f.Store
	if store == nil {
		store = inmemorystore.New()
	}
	return New(ctx, cfg, store), nil
}

// Session implements session.Session for local runs.
type Session struct {
	scheduler    string
	store        taskstore.Store
	logger       *slog.Logger
	workerLogger *slog.Logger

	incoming chan *job
	ready    chan *job
	workers  sync.WaitGroup
	stop     context.CancelFunc

	mu       sync.Mutex
	closed   bool
	payloads map[session.Handle]any
	pure     map[string]*session.Task
}

// job is one submission waiting for a worker.
type job struct {
	task    *session.Task
	fn      session.TaskFunc
	payload any
	opts    session.SubmitOptions
}

// New starts a session with cfg.Workers workers recording into store.
func New(ctx context.Context, cfg session.Config, store taskstore.Store) *Session {
	logger := ctxlog.FromContext(ctx)
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	workerLogger := cfg.WorkerLogger
	if workerLogger == nil {
		workerLogger = logger
	}

	runCtx, stop := context.WithCancel(ctx)
	s := &Session{
		scheduler:    cfg.Scheduler,
		store:        store,
		logger:       logger,
		workerLogger: workerLogger,
		incoming:     make(chan *job),
		ready:        make(chan *job),
		stop:         stop,
		payloads:     make(map[session.Handle]any),
		pure:         make(map[string]*session.Task),
	}

	go s.dispatch()
	for i := 0; i < workers; i++ {
		s.workers.Add(1)
		go s.worker(runCtx, i)
	}
	logger.Info("🔌 Connected to worker pool.", "scheduler", cfg.Scheduler, "workers", workers)
	return s
}

// Scatter stores a read-only payload and returns its handle.
func (s *Session) Scatter(ctx context.Context, payload any) (session.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", session.ErrClosed
	}
	h := session.Handle(uuid.NewString())
	s.payloads[h] = payload
	ctxlog.FromContext(ctx).Debug("Scattered payload.", "handle", h)
	return h, nil
}

// Release drops the payloads behind handles together with any pure task
// cached against them. Tasks already queued keep their payload.
func (s *Session) Release(handles ...session.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range handles {
		if _, ok := s.payloads[h]; !ok {
			continue
		}
		delete(s.payloads, h)
		for key, t := range s.pure {
			if t.Handle() == h {
				delete(s.pure, key)
			}
		}
		s.logger.Debug("Released payload.", "handle", h)
	}
}

// Scattered reports how many payloads are held.
func (s *Session) Scattered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// Submit queues fn against a scattered payload. It never waits for a worker.
func (s *Session) Submit(ctx context.Context, fn session.TaskFunc, h session.Handle, opts session.SubmitOptions) (*session.Task, error) {
	logger := ctxlog.FromContext(ctx)
	if fn == nil {
		return nil, fmt.Errorf("submit %q: nil task function", opts.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, session.ErrClosed
	}
	payload, ok := s.payloads[h]
	if !ok {
		return nil, fmt.Errorf("submit %q: %w: %s", opts.Name, session.ErrUnknownHandle, h)
	}

	var key string
	if opts.Pure {
		key = pureKey(fn, h)
		if prev, ok := s.pure[key]; ok {
			if st := prev.Status(); st != session.StatusError && st != session.StatusCancelled {
				logger.Debug("Reusing pure task.", "task", prev.ID(), "name", opts.Name)
				return prev, nil
			}
		}
	}

	t := session.NewTask(opts.Name, opts.Ordinal, h)
	t.SetObserver(s.record)
	if opts.Pure {
		s.pure[key] = t
	}
	_ = s.store.SetStatus(ctx, t.ID(), session.StatusPending)
	s.incoming <- &job{task: t, fn: fn, payload: payload, opts: opts}
	logger.Debug("Submitted task.", "task", t.ID(), "name", opts.Name, "ordinal", opts.Ordinal)
	return t, nil
}

// Wait blocks until every task is terminal or ctx ends.
func (s *Session) Wait(ctx context.Context, tasks []*session.Task) error {
	return session.WaitAll(ctx, tasks)
}

// Gather waits for the tasks and returns their results in order.
func (s *Session) Gather(ctx context.Context, tasks []*session.Task, onErr session.OnError) ([]any, error) {
	return session.GatherAll(ctx, tasks, onErr)
}

// Cancel stops a task. Repeated calls are no-ops.
func (s *Session) Cancel(t *session.Task) {
	if t == nil || !t.Cancel() {
		return
	}
	s.logger.Debug("Cancelled task.", "task", t.ID(), "name", t.Name(), "ordinal", t.Ordinal())
}

// record mirrors a task transition into the store.
func (s *Session) record(tr session.Transition) {
	ctx := context.Background()
	switch tr.Status {
	case session.StatusComplete:
		_ = s.store.SetOutput(ctx, tr.TaskID, tr.Result)
	case session.StatusError:
		_ = s.store.SetError(ctx, tr.TaskID, tr.Err)
	}
	if err := s.store.SetStatus(ctx, tr.TaskID, tr.Status); err != nil {
		s.logger.Warn("Failed to record task status.", "task", tr.TaskID, "status", tr.Status, "error", err)
	}
}

// Progress returns status counts of every task this session has run.
func (s *Session) Progress() session.Progress {
	p, err := s.store.Summary(context.Background())
	if err != nil {
		s.logger.Warn("Failed to summarise task store.", "error", err)
	}
	return p
}

// Close stops accepting work, cancels queued tasks and waits for the workers
// to return.
func (s *Session) Close(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.incoming)
	s.payloads = nil
	s.mu.Unlock()

	s.stop()
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Debug("localsession.Session.Close finished", "scheduler", s.scheduler)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

// Store returns the task store the session records into.
func (s *Session) Store() taskstore.Store {
	return s.store
}

func pureKey(fn session.TaskFunc, h session.Handle) string {
	return fmt.Sprintf("%x/%s", reflect.ValueOf(fn).Pointer(), h)
}
