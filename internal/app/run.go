package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/pipeline"
	"github.com/vk/dprepgo/modules/s3"
)

// Run executes one imaging run with the configured collaborators.
func (a *App) Run(ctx context.Context) (*pipeline.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	opts := []pipeline.Option{pipeline.WithPublisherFactory(a.publishers)}
	if a.taskFn != nil {
		opts = append(opts, pipeline.WithTaskFunc(a.taskFn))
	}

	if a.config.UploadURL != "" {
		up, err := s3.NewUploader(a.config.UploadURL, nil)
		if err != nil {
			return nil, err
		}
		defer up.Close()
		opts = append(opts, pipeline.WithUploader(up))
		a.logger.Debug("Image upload enabled.", "prefix", a.config.UploadURL)
	}

	if a.config.WorkerLog != "" {
		if err := os.MkdirAll(filepath.Dir(a.config.WorkerLog), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create worker log directory: %w", err)
		}
		f, err := os.OpenFile(a.config.WorkerLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open worker log: %w", err)
		}
		defer f.Close()
		opts = append(opts, pipeline.WithWorkerLogger(newLogger(a.config.LogLevel, a.config.LogFormat, f)))
		a.logger.Info("Worker logs redirected.", "path", a.config.WorkerLog)
	}

	driver := pipeline.New(a.config.Pipeline(), a.factory, opts...)
	a.setDriver(driver)

	report, err := driver.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("imaging run failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return report, nil
}
