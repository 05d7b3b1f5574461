// Package pipeline drives one imaging run end to end: load, build work
// units, fan out, supervise, aggregate and reduce to moments.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vk/dprepgo/internal/aggregate"
	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/imaging"
	"github.com/vk/dprepgo/internal/instrument"
	"github.com/vk/dprepgo/internal/loader"
	"github.com/vk/dprepgo/internal/moments"
	"github.com/vk/dprepgo/internal/monitor"
	"github.com/vk/dprepgo/internal/qa"
	"github.com/vk/dprepgo/internal/session"
	"github.com/vk/dprepgo/internal/workunit"
)

// Origin labels the QA summaries published by the driver.
const Origin = "dprepgo"

// Config is the run configuration.
type Config struct {
	Scheduler     string
	Workers       int
	Channels      int
	InputsDir     string
	MS1, MS2      string
	OutputsDir    string
	Queues        bool
	QueueURL      string
	QueueTopic    string
	Plots         bool
	TwoD          bool
	UVCut         float64
	AngRes        float64
	Pixels        float64
	Instrument    string
	Retries       int
	Resubmissions int
	TaskTimeout   time.Duration
}

// PublisherFactory connects a QA publisher to a queue endpoint.
type PublisherFactory func(ctx context.Context, url string) (qa.Publisher, error)

// Report summarises a finished run.
type Report struct {
	Images      []string
	Moments     []string
	Resubmitted int
	Published   int
	Warnings    int
	Duration    time.Duration
}

// Driver runs the pipeline against a session backend.
type Driver struct {
	cfg          Config
	factory      session.SessionFactory
	task         session.TaskFunc
	uploader     imaging.Uploader
	publishers   PublisherFactory
	workerLogger *slog.Logger

	mu   sync.Mutex
	sess session.Session
}

// Option customises a Driver.
type Option func(*Driver)

// WithTaskFunc replaces the reference imager.
func WithTaskFunc(fn session.TaskFunc) Option {
	return func(d *Driver) { d.task = fn }
}

// WithUploader makes the reference imager upload every image it writes.
func WithUploader(u imaging.Uploader) Option {
	return func(d *Driver) { d.uploader = u }
}

// WithPublisherFactory sets how the QA publisher is connected when queues
// are enabled.
func WithPublisherFactory(f PublisherFactory) Option {
	return func(d *Driver) { d.publishers = f }
}

// WithWorkerLogger routes the logs emitted inside tasks to logger.
func WithWorkerLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.workerLogger = logger }
}

// New creates a driver.
func New(cfg Config, factory session.SessionFactory, opts ...Option) *Driver {
	d := &Driver{cfg: cfg, factory: factory}
	for _, opt := range opts {
		opt(d)
	}
	if d.task == nil {
		im := imaging.NewImager()
		im.Uploader = d.uploader
		d.task = im.Run
	}
	return d
}

// Progress reports the task counts of the current session, or zero counts
// before the session starts.
func (d *Driver) Progress() session.Progress {
	d.mu.Lock()
	sess := d.sess
	d.mu.Unlock()
	if sess == nil {
		return session.Progress{}
	}
	return sess.Progress()
}

// Run executes the whole pipeline.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	cfg := d.cfg

	frame, err := instrument.Init(cfg.Instrument)
	if err != nil {
		return nil, err
	}
	logger.Info("🚀 Starting imaging run.", "instrument", cfg.Instrument, "frame", frame, "channels", cfg.Channels, "scheduler", cfg.Scheduler)

	if err := os.MkdirAll(filepath.Join(cfg.OutputsDir, moments.Dir), 0o755); err != nil {
		return nil, fmt.Errorf("create outputs: %w", err)
	}

	loaded, err := loader.LoadPair(ctx, loader.Request{
		Path1:         filepath.Join(cfg.InputsDir, cfg.MS1),
		Path2:         filepath.Join(cfg.InputsDir, cfg.MS2),
		Channels:      cfg.Channels,
		Polarisation:  frame,
		UVCutoff:      cfg.UVCut,
		PixelsPerBeam: cfg.Pixels,
	})
	if err != nil {
		return nil, err
	}

	units, err := workunit.NewBuilder(loaded.Vis1, loaded.Vis2, workunit.Options{
		MakePlots:       cfg.Plots,
		UVCutoff:        cfg.UVCut,
		PixelsPerBeam:   cfg.Pixels,
		Polarisation:    frame,
		ResultsDir:      cfg.OutputsDir,
		ForceResolution: cfg.AngRes,
		TwoD:            cfg.TwoD,
		Advice:          loaded.Advice,
	}).BuildAll(cfg.Channels)
	if err != nil {
		return nil, err
	}

	sess, err := d.factory.NewSession(ctx, session.Config{
		Scheduler:    cfg.Scheduler,
		Workers:      cfg.Workers,
		WorkerLogger: d.workerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Scheduler, err)
	}
	d.mu.Lock()
	d.sess = sess
	d.mu.Unlock()
	defer func() {
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close session.", "error", err)
		}
	}()

	retries := session.RetryBudget(cfg.Retries)
	tasks := make([]*session.Task, 0, len(units))
	handles := make([]session.Handle, 0, len(units))
	for i, u := range units {
		h, err := sess.Scatter(ctx, u)
		if err != nil {
			sess.Release(handles...)
			return nil, fmt.Errorf("scatter channel %d: %w", u.Channel, err)
		}
		handles = append(handles, h)
		t, err := sess.Submit(ctx, d.task, h, session.SubmitOptions{
			Name:    fmt.Sprintf("image-%d", u.Channel),
			Ordinal: i,
			Retries: retries,
			Timeout: cfg.TaskTimeout,
		})
		if err != nil {
			sess.Release(handles...)
			return nil, fmt.Errorf("submit channel %d: %w", u.Channel, err)
		}
		tasks = append(tasks, t)
	}
	logger.Info("Submitted imaging tasks.", "count", len(tasks))

	resubmitted, err := monitor.New(sess, d.task, monitor.Options{
		Resubmissions: cfg.Resubmissions,
		Retries:       retries,
		Timeout:       cfg.TaskTimeout,
	}).Supervise(ctx, tasks)
	// Resubmissions are over, so nothing reads the work units again.
	sess.Release(handles...)
	if err != nil {
		return nil, err
	}

	aggOpts := aggregate.Options{
		Topic:   cfg.QueueTopic,
		Origin:  Origin,
		Retries: retries,
		Timeout: cfg.TaskTimeout,
	}
	if cfg.Queues {
		aggOpts.Publisher = d.connectPublisher(ctx)
		if aggOpts.Publisher != nil {
			defer aggOpts.Publisher.Close()
		}
	}
	agg, err := aggregate.New(sess, aggOpts).Run(ctx, tasks)
	if err != nil {
		return nil, err
	}

	m, err := moments.Calc(agg.Data)
	if err != nil {
		return nil, fmt.Errorf("moments: %w", err)
	}
	momentPaths, err := moments.Save(cfg.OutputsDir, m, agg.Images[0])
	if err != nil {
		return nil, fmt.Errorf("save moments: %w", err)
	}

	report := &Report{
		Moments:     momentPaths,
		Resubmitted: resubmitted,
		Published:   agg.Published,
		Warnings:    agg.Warnings,
		Duration:    time.Since(start),
	}
	for _, im := range agg.Images {
		report.Images = append(report.Images, im.Path)
	}
	logger.Info("🏁 Imaging run finished.",
		"images", len(report.Images),
		"resubmitted", report.Resubmitted,
		"qa_published", report.Published,
		"qa_warnings", report.Warnings,
		"duration", report.Duration,
	)
	return report, nil
}

// connectPublisher returns nil when no publisher can be connected; QA
// delivery is never allowed to fail a run.
func (d *Driver) connectPublisher(ctx context.Context) qa.Publisher {
	logger := ctxlog.FromContext(ctx)
	if d.publishers == nil {
		logger.Warn("QA queues requested but no publisher is configured.")
		return nil
	}
	pub, err := d.publishers(ctx, d.cfg.QueueURL)
	if err != nil {
		w := &aggregate.PublishWarning{Channel: -1, Topic: d.cfg.QueueTopic, Err: err}
		logger.Warn("QA publisher unavailable, continuing without it.", "url", d.cfg.QueueURL, "error", w)
		return nil
	}
	return pub
}
