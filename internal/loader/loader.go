// Package loader reads the two measurement sets of a run, merges them and
// derives the advisory gridding parameters shared by every channel.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/visibility"
	"golang.org/x/sync/errgroup"
)

// DataLoadError reports an input dataset that could not be used. It is fatal
// and always raised before any task is submitted.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// Request describes what to load.
type Request struct {
	Path1, Path2  string
	Channels      int
	Polarisation  string
	UVCutoff      float64
	PixelsPerBeam float64
}

// Result holds both datasets restricted to the requested channels, plus the
// advice computed from their merged, uv-cut union.
type Result struct {
	Vis1, Vis2 *visibility.Dataset
	Advice     visibility.Advice
	// Merged is the uv-cut union the advice was derived from.
	Merged *visibility.Dataset
}

// LoadPair loads both datasets concurrently, merges them with append
// semantics, applies the uv cut and computes the gridding advice.
func LoadPair(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading measurement sets.", "ms1", req.Path1, "ms2", req.Path2, "channels", req.Channels)

	if req.Channels <= 0 {
		return nil, &DataLoadError{Path: req.Path1, Err: fmt.Errorf("channel count must be positive, got %d", req.Channels)}
	}

	var vis1, vis2 *visibility.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		vis1, err = loadOne(gctx, req.Path1, req)
		return err
	})
	g.Go(func() (err error) {
		vis2, err = loadOne(gctx, req.Path2, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := visibility.Append(vis1, vis2)
	if err != nil {
		return nil, &DataLoadError{Path: req.Path2, Err: err}
	}
	merged = visibility.UVCut(merged, req.UVCutoff)
	logger.Debug("Applied uv cut.", "cutoff", req.UVCutoff, "samples_kept", merged.Len())

	advice, err := visibility.Advise(merged, req.UVCutoff, req.PixelsPerBeam)
	if err != nil {
		if errors.Is(err, visibility.ErrNoSamples) {
			err = fmt.Errorf("no samples within uv cutoff %v: %w", req.UVCutoff, err)
		}
		return nil, &DataLoadError{Path: req.Path1 + "+" + req.Path2, Err: err}
	}
	if advice.NPixel <= 0 || advice.Cell <= 0 || math.IsInf(advice.Cell, 0) || math.IsNaN(advice.Cell) {
		return nil, &DataLoadError{Path: req.Path1 + "+" + req.Path2, Err: fmt.Errorf("invalid advice %+v", advice)}
	}

	logger.Info("Measurement sets loaded.",
		"samples_ms1", vis1.Len(),
		"samples_ms2", vis2.Len(),
		"npixel", advice.NPixel,
		"cell_rad", advice.Cell,
	)
	return &Result{Vis1: vis1, Vis2: vis2, Advice: advice, Merged: merged}, nil
}

func loadOne(ctx context.Context, path string, req Request) (*visibility.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := visibility.Read(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Err: err}
	}
	if req.Polarisation != "" && ds.Polarisation != req.Polarisation {
		return nil, &DataLoadError{Path: path, Err: fmt.Errorf("polarisation frame %q does not match instrument frame %q", ds.Polarisation, req.Polarisation)}
	}
	ds, err = visibility.SelectChannels(ds, req.Channels)
	if err != nil {
		return nil, &DataLoadError{Path: path, Err: err}
	}
	ctxlog.FromContext(ctx).Debug("Measurement set read.", "path", path, "samples", ds.Len())
	return ds, nil
}
