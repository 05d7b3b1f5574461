// Package moments computes per-pixel statistics across the channel images of
// a run.
package moments

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/dprepgo/internal/imaging"
	"gonum.org/v1/gonum/stat"
)

// Dir is the sub-directory of the outputs that holds moment images.
const Dir = "MOMENTS"

// Moments holds the mean and standard deviation of every pixel of every
// plane over the channel axis.
type Moments struct {
	Channels int
	Mean     [][]float64
	Std      [][]float64
}

// Calc reduces data, indexed [channel][plane][pixel], over channels.
func Calc(data [][][]float64) (*Moments, error) {
	if len(data) == 0 {
		return nil, errors.New("no channel data")
	}
	planes := len(data[0])
	pixels := 0
	if planes > 0 {
		pixels = len(data[0][0])
	}
	for ch, d := range data {
		if len(d) != planes {
			return nil, fmt.Errorf("channel %d has %d planes, expected %d", ch, len(d), planes)
		}
		for p := range d {
			if len(d[p]) != pixels {
				return nil, fmt.Errorf("channel %d plane %d has %d pixels, expected %d", ch, p, len(d[p]), pixels)
			}
		}
	}

	m := &Moments{Channels: len(data), Mean: make([][]float64, planes), Std: make([][]float64, planes)}
	column := make([]float64, len(data))
	for p := 0; p < planes; p++ {
		mean := make([]float64, pixels)
		std := make([]float64, pixels)
		for i := 0; i < pixels; i++ {
			for ch, d := range data {
				column[ch] = d[p][i]
			}
			mean[i], std[i] = stat.PopMeanStdDev(column, nil)
		}
		m.Mean[p], m.Std[p] = mean, std
	}
	return m, nil
}

// Save writes the mean and standard deviation images into outputs/MOMENTS,
// copying the geometry of ref. It returns the written paths.
func Save(outputs string, m *Moments, ref *imaging.Image) ([]string, error) {
	dir := filepath.Join(outputs, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, product := range []struct {
		name   string
		planes [][]float64
	}{{"moment_mean.fits", m.Mean}, {"moment_std.fits", m.Std}} {
		im := &imaging.Image{
			NPixel:      ref.NPixel,
			Cell:        ref.Cell,
			Frequency:   ref.Frequency,
			PhaseCentre: ref.PhaseCentre,
			Planes:      product.planes,
		}
		path := filepath.Join(dir, product.name)
		if err := imaging.Export(im, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
