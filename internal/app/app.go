package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/localsession"
	"github.com/vk/dprepgo/internal/pipeline"
	"github.com/vk/dprepgo/internal/qa"
	"github.com/vk/dprepgo/internal/session"
	"github.com/vk/dprepgo/modules/socketio"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	factory    session.SessionFactory
	publishers pipeline.PublisherFactory
	taskFn     session.TaskFunc

	ctx        context.Context
	httpServer *http.Server

	mu     sync.Mutex
	driver *pipeline.Driver
}

// Option customises an App.
type Option func(*App)

// WithSessionFactory replaces the in-process worker pool.
func WithSessionFactory(f session.SessionFactory) Option {
	return func(a *App) { a.factory = f }
}

// WithPublisherFactory replaces the socket.io QA publisher.
func WithPublisherFactory(f pipeline.PublisherFactory) Option {
	return func(a *App) { a.publishers = f }
}

// WithTaskFunc replaces the reference imaging task.
func WithTaskFunc(fn session.TaskFunc) Option {
	return func(a *App) { a.taskFn = fn }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:       outW,
		logger:     logger,
		config:     cfg,
		factory:    &localsession.SessionFactory{},
		publishers: connectSocketIO,
		ctx:        ctxlog.WithLogger(context.Background(), logger),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func connectSocketIO(ctx context.Context, url string) (qa.Publisher, error) {
	p, err := socketio.Connect(ctx, url, socketio.Options{})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Progress reports task counts of the running driver.
func (a *App) Progress() session.Progress {
	a.mu.Lock()
	d := a.driver
	a.mu.Unlock()
	if d == nil {
		return session.Progress{}
	}
	return d.Progress()
}

func (a *App) setDriver(d *pipeline.Driver) {
	a.mu.Lock()
	a.driver = d
	a.mu.Unlock()
}
