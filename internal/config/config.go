package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Pipeline is the decoded `pipeline` block. Nil fields were not set.
type Pipeline struct {
	Scheduler       *string  `hcl:"scheduler,optional"`
	Workers         *int     `hcl:"workers,optional"`
	Channels        *int     `hcl:"channels,optional"`
	Inputs          *string  `hcl:"inputs,optional"`
	MS1             *string  `hcl:"ms1,optional"`
	MS2             *string  `hcl:"ms2,optional"`
	Outputs         *string  `hcl:"outputs,optional"`
	Queues          *bool    `hcl:"queues,optional"`
	QueueURL        *string  `hcl:"queue_url,optional"`
	QueueTopic      *string  `hcl:"queue_topic,optional"`
	Plots           *bool    `hcl:"plots,optional"`
	TwoD            *bool    `hcl:"twod,optional"`
	UVCut           *float64 `hcl:"uvcut,optional"`
	AngRes          *float64 `hcl:"angres,optional"`
	Pixels          *float64 `hcl:"pixels,optional"`
	Instrument      *string  `hcl:"inst,optional"`
	Retries         *int     `hcl:"retries,optional"`
	Resubmissions   *int     `hcl:"resubmissions,optional"`
	TaskTimeout     *string  `hcl:"task_timeout,optional"`
	WorkerLog       *string  `hcl:"worker_log,optional"`
	UploadURL       *string  `hcl:"upload_url,optional"`
	LogLevel        *string  `hcl:"log_level,optional"`
	LogFormat       *string  `hcl:"log_format,optional"`
	HealthcheckPort *int     `hcl:"healthcheck_port,optional"`
}

type hclFile struct {
	Pipeline Pipeline `hcl:"pipeline,block"`
}

// Load reads a pipeline file, or every .hcl file under a directory.
func Load(ctx context.Context, path string) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading pipeline configuration.", "path", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to find config files in %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .hcl files found in %s", path)
		}
	}

	parser := hclparse.NewParser()
	evalCtx := EvalContext()
	merged := &Pipeline{}
	for _, f := range files {
		p, err := decodeFile(parser, evalCtx, f)
		if err != nil {
			return nil, err
		}
		overlay(merged, p)
		logger.Debug("Pipeline file decoded.", "file", f)
	}
	return merged, nil
}

func decodeFile(parser *hclparse.Parser, evalCtx *hcl.EvalContext, path string) (*Pipeline, error) {
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, evalCtx, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	return &parsed.Pipeline, nil
}

// EvalContext exposes the process environment as the `env` object.
func EvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" || !validName(k) {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}

// validName drops names that cannot be addressed as env.NAME, such
// as the "=C:" entries some shells export.
func validName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// overlay copies every non-nil field of src onto dst.
func overlay(dst, src *Pipeline) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for i := 0; i < sv.NumField(); i++ {
		if f := sv.Field(i); !f.IsNil() {
			dv.Field(i).Set(f)
		}
	}
}
