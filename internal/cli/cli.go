package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vk/dprepgo/internal/app"
	"github.com/vk/dprepgo/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Settings come from the built-in defaults, then the optional --config
// file, then flags given explicitly on the command line.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("dprepgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
dprepgo - Distributed per-channel imaging of radio visibility data.

Usage:
  dprepgo [options]

Images every frequency channel of two visibility datasets on a worker pool,
resubmits failed channels once, and writes per-channel FITS images plus the
mean and standard deviation moments.

Options:
`)
		flagSet.PrintDefaults()
	}

	cfg := app.Config{}
	var taskTimeout string
	flagSet.StringVar(&cfg.ConfigPath, "config", "", "Path to a pipeline .hcl file or directory.")
	flagSet.StringVar(&cfg.Scheduler, "scheduler", "scheduler:8786", "Scheduler address.")
	flagSet.IntVar(&cfg.Workers, "workers", 4, "Number of concurrent imaging workers.")
	flagSet.IntVar(&cfg.Channels, "channels", 40, "Number of frequency channels to image.")
	flagSet.StringVar(&cfg.InputsDir, "inputs", "/data/inputs", "Directory holding the input datasets.")
	flagSet.StringVar(&cfg.MS1, "ms1", "sim-1.ms", "First dataset, relative to --inputs.")
	flagSet.StringVar(&cfg.MS2, "ms2", "sim-2.ms", "Second dataset, relative to --inputs.")
	flagSet.StringVar(&cfg.OutputsDir, "outputs", "/data/outputs", "Directory receiving images and moments.")
	flagSet.BoolVar(&cfg.Queues, "queues", false, "Publish QA summaries to the message queue.")
	flagSet.StringVar(&cfg.QueueURL, "queue-url", "http://scheduler:9092/", "Message queue endpoint.")
	flagSet.StringVar(&cfg.QueueTopic, "queue-topic", "qa", "Message queue topic for QA summaries.")
	flagSet.BoolVar(&cfg.Plots, "plots", false, "Write uv-coverage plot data next to every image.")
	flagSet.BoolVar(&cfg.TwoD, "twod", true, "Use 2D imaging instead of w-stacking.")
	flagSet.Float64Var(&cfg.UVCut, "uvcut", 450, "Maximum baseline length in wavelengths.")
	flagSet.Float64Var(&cfg.AngRes, "angres", 8, "Restoring beam FWHM in arcminutes.")
	flagSet.Float64Var(&cfg.Pixels, "pixels", 5, "Pixels per restoring beam.")
	flagSet.StringVar(&cfg.Instrument, "inst", "LOFAR", "Instrument name.")
	flagSet.IntVar(&cfg.Retries, "retries", 3, "Attempts per task before it is marked failed.")
	flagSet.IntVar(&cfg.Resubmissions, "resubmissions", 1, "Resubmission passes for failed tasks.")
	flagSet.StringVar(&taskTimeout, "task-timeout", "", "Per-attempt timeout, e.g. 30m. Empty disables.")
	flagSet.StringVar(&cfg.WorkerLog, "worker-log", "", "File receiving the logs emitted inside tasks.")
	flagSet.StringVar(&cfg.UploadURL, "upload-url", "", "URL prefix every image is PUT below.")
	flagSet.StringVar(&cfg.LogFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flagSet.StringVar(&cfg.LogLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.IntVar(&cfg.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, usageError("unexpected arguments: %v", flagSet.Args())
	}
	slog.Debug("Arguments parsed successfully.")

	explicit := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if cfg.ConfigPath != "" {
		file, err := config.Load(context.Background(), cfg.ConfigPath)
		if err != nil {
			return nil, false, usageError("%v", err)
		}
		applyFile(&cfg, &taskTimeout, file, explicit)
		slog.Debug("Pipeline file applied.", "path", cfg.ConfigPath)
	}

	if taskTimeout != "" {
		d, err := time.ParseDuration(taskTimeout)
		if err != nil {
			return nil, false, usageError("invalid task-timeout: %v", err)
		}
		cfg.TaskTimeout = d
	}

	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", validated)
	return validated, false, nil
}

// pick copies a file value unless the flag was given on the command line.
func pick[T any](dst *T, src *T, flagName string, explicit map[string]bool) {
	if src != nil && !explicit[flagName] {
		*dst = *src
	}
}

func applyFile(cfg *app.Config, taskTimeout *string, f *config.Pipeline, explicit map[string]bool) {
	pick(&cfg.Scheduler, f.Scheduler, "scheduler", explicit)
	pick(&cfg.Workers, f.Workers, "workers", explicit)
	pick(&cfg.Channels, f.Channels, "channels", explicit)
	pick(&cfg.InputsDir, f.Inputs, "inputs", explicit)
	pick(&cfg.MS1, f.MS1, "ms1", explicit)
	pick(&cfg.MS2, f.MS2, "ms2", explicit)
	pick(&cfg.OutputsDir, f.Outputs, "outputs", explicit)
	pick(&cfg.Queues, f.Queues, "queues", explicit)
	pick(&cfg.QueueURL, f.QueueURL, "queue-url", explicit)
	pick(&cfg.QueueTopic, f.QueueTopic, "queue-topic", explicit)
	pick(&cfg.Plots, f.Plots, "plots", explicit)
	pick(&cfg.TwoD, f.TwoD, "twod", explicit)
	pick(&cfg.UVCut, f.UVCut, "uvcut", explicit)
	pick(&cfg.AngRes, f.AngRes, "angres", explicit)
	pick(&cfg.Pixels, f.Pixels, "pixels", explicit)
	pick(&cfg.Instrument, f.Instrument, "inst", explicit)
	pick(&cfg.Retries, f.Retries, "retries", explicit)
	pick(&cfg.Resubmissions, f.Resubmissions, "resubmissions", explicit)
	pick(taskTimeout, f.TaskTimeout, "task-timeout", explicit)
	pick(&cfg.WorkerLog, f.WorkerLog, "worker-log", explicit)
	pick(&cfg.UploadURL, f.UploadURL, "upload-url", explicit)
	pick(&cfg.LogLevel, f.LogLevel, "log-level", explicit)
	pick(&cfg.LogFormat, f.LogFormat, "log-format", explicit)
	pick(&cfg.HealthcheckPort, f.HealthcheckPort, "healthcheck-port", explicit)
}
