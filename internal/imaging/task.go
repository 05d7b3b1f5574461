package imaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/visibility"
	"github.com/vk/dprepgo/internal/workunit"
)

// Uploader copies a written file to remote storage.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// Imager is the imaging task. Its Run method has the session.TaskFunc
// signature and expects a *workunit.WorkUnit payload.
type Imager struct {
	Clean CleanParams
	// Uploader, when set, receives every written image.
	Uploader Uploader
}

// NewImager returns an imager with the default deconvolution settings.
func NewImager() *Imager {
	return &Imager{Clean: DefaultClean}
}

// FileName is the name of the image written for a channel.
func FileName(channel int, twoD bool) string {
	mode := "WStack"
	if twoD {
		mode = "2D"
	}
	return fmt.Sprintf("imaging_clean_%s-%d.fits", mode, channel)
}

// Run images one work unit, writes the result into its results directory and
// returns the *Image.
func (im *Imager) Run(ctx context.Context, payload any) (any, error) {
	u, ok := payload.(*workunit.WorkUnit)
	if !ok {
		return nil, fmt.Errorf("imaging task expects *workunit.WorkUnit, got %T", payload)
	}
	logger := ctxlog.FromContext(ctx).With("channel", u.Channel)
	start := time.Now()

	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(u.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}

	vis, err := visibility.Append(u.Vis1, u.Vis2)
	if err != nil {
		return nil, err
	}
	vis = visibility.UVCut(vis, u.UVCutoff)
	logger.Debug("Prepared visibilities.", "samples", vis.Len())

	if u.MakePlots {
		if err := writeCoverage(filepath.Join(u.ResultsDir, fmt.Sprintf("uv_coverage-%d.csv", u.Channel)), vis); err != nil {
			return nil, fmt.Errorf("uv coverage plot: %w", err)
		}
	}
	if u.ApplyBeam {
		logger.Warn("Primary beam correction is not modelled by the reference imager; ignoring.")
	}

	samples, err := im.stokes(u)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirty, psf, err := invert(samples, u.NPixel, u.Cell, u.TwoD)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := im.Clean
	if clean.Iterations == 0 {
		clean = DefaultClean
	}
	sigma := restoringWidth(u.ForceResolution, u.Cell)
	out := NewImage(u.Channel, u.NPixel, u.Cell)
	out.Frequency = vis.Frequency(u.Channel)
	out.PhaseCentre = vis.PhaseCentre
	for p := 0; p < NumStokes; p++ {
		comp, residual := hogbom(dirty[p], psf, u.NPixel, clean)
		out.Planes[p] = restore(comp, residual, u.NPixel, sigma)
	}

	out.Path = filepath.Join(u.ResultsDir, FileName(u.Channel, u.TwoD))
	if err := Export(out, out.Path); err != nil {
		return nil, err
	}
	if im.Uploader != nil {
		if err := im.Uploader.Upload(ctx, out.Path); err != nil {
			return nil, fmt.Errorf("upload %s: %w", out.Path, err)
		}
	}

	peak, _, _ := out.Peak(StokesI)
	logger.Info("Channel imaged.", "path", out.Path, "npixel", u.NPixel, "peak_i", peak, "duration", time.Since(start))
	return out, nil
}

// stokes converts both datasets after the uv cut, derotating each with its
// own ionospheric correction when requested.
func (im *Imager) stokes(u *workunit.WorkUnit) ([]stokesSample, error) {
	var all []stokesSample
	for _, part := range []struct {
		ds   *visibility.Dataset
		corr *workunit.IonosphereCorrection
	}{{u.Vis1, u.Ionosphere1}, {u.Vis2, u.Ionosphere2}} {
		ds := visibility.UVCut(part.ds, u.UVCutoff)
		s, err := toStokes(ds, u.Polarisation)
		if err != nil {
			return nil, err
		}
		if u.ApplyIonosphere {
			if err := derotate(s, ds, part.corr); err != nil {
				return nil, err
			}
		}
		all = append(all, s...)
	}
	return all, nil
}

// ExtractData is the second-stage task: it returns the pixel planes of an
// *Image, leaving the image untouched.
func ExtractData(ctx context.Context, payload any) (any, error) {
	im, ok := payload.(*Image)
	if !ok {
		return nil, fmt.Errorf("extract task expects *imaging.Image, got %T", payload)
	}
	return im.Planes, nil
}
