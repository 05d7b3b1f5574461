package app

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vk/dprepgo/internal/pipeline"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // optional pipeline .hcl file or directory

	Scheduler     string
	Workers       int
	Channels      int
	InputsDir     string
	MS1           string
	MS2           string
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
	WorkerLog     string
	UploadURL     string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	req := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	positive := func(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }

	req(cfg.Scheduler != "", "scheduler is a required configuration field and cannot be empty")
	req(cfg.Workers > 0, "workers must be positive, got %d", cfg.Workers)
	req(cfg.Channels > 0, "channels must be positive, got %d", cfg.Channels)
	req(cfg.InputsDir != "", "inputs is a required configuration field and cannot be empty")
	req(cfg.MS1 != "" && cfg.MS2 != "", "ms1 and ms2 are required")
	req(cfg.OutputsDir != "", "outputs is a required configuration field and cannot be empty")
	req(positive(cfg.UVCut), "uvcut must be positive, got %v", cfg.UVCut)
	req(positive(cfg.AngRes), "angres must be positive, got %v", cfg.AngRes)
	req(positive(cfg.Pixels), "pixels must be positive, got %v", cfg.Pixels)
	req(cfg.Instrument != "", "inst is a required configuration field and cannot be empty")
	req(cfg.Retries > 0, "retries must be at least 1, got %d", cfg.Retries)
	req(cfg.Resubmissions >= 0, "resubmissions cannot be negative, got %d", cfg.Resubmissions)
	req(cfg.TaskTimeout >= 0, "task-timeout cannot be negative, got %s", cfg.TaskTimeout)
	req(!cfg.Queues || cfg.QueueURL != "", "queue-url is required when queues are enabled")
	req(!cfg.Queues || cfg.QueueTopic != "", "queue-topic is required when queues are enabled")
	req(cfg.HealthcheckPort >= 0 && cfg.HealthcheckPort <= 65535, "healthcheck-port out of range: %d", cfg.HealthcheckPort)

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	req(cfg.LogFormat == "text" || cfg.LogFormat == "json", "invalid log-format: must be 'text' or 'json'")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Pipeline converts the run settings for the driver.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Scheduler:     c.Scheduler,
		Workers:       c.Workers,
		Channels:      c.Channels,
		InputsDir:     c.InputsDir,
		MS1:           c.MS1,
		MS2:           c.MS2,
		OutputsDir:    c.OutputsDir,
		Queues:        c.Queues,
		QueueURL:      c.QueueURL,
		QueueTopic:    c.QueueTopic,
		Plots:         c.Plots,
		TwoD:          c.TwoD,
		UVCut:         c.UVCut,
		AngRes:        c.AngRes,
		Pixels:        c.Pixels,
		Instrument:    c.Instrument,
		Retries:       c.Retries,
		Resubmissions: c.Resubmissions,
		TaskTimeout:   c.TaskTimeout,
	}
}
