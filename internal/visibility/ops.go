package visibility

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinNPixel and MaxNPixel bound the advised image size.
	MinNPixel = 64
	MaxNPixel = 1024
)

// ErrNoSamples is returned when an operation needs at least one usable sample.
var ErrNoSamples = errors.New("dataset has no usable samples")

// Advice holds the advisory gridding parameters for a dataset.
type Advice struct {
	NPixel int
	// Cell is the pixel size in radians.
	Cell  float64
	UVMax float64
	UVMin float64
}

// SelectChannels keeps the first n channels of d.
func SelectChannels(d *Dataset, n int) (*Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", n)
	}
	if d.NumChannels() < n {
		return nil, fmt.Errorf("dataset %q describes %d channels, %d requested", d.Name, d.NumChannels(), n)
	}
	out := d.shallowCopy(len(d.Samples))
	out.Frequencies = out.Frequencies[:n]
	for _, s := range d.Samples {
		if s.Channel >= 0 && s.Channel < n {
			out.Samples = append(out.Samples, s)
		}
	}
	return out, nil
}

// Channel returns a view of d containing only the samples of one channel.
// The returned dataset shares no sample memory with d.
func Channel(d *Dataset, channel int) *Dataset {
	out := d.shallowCopy(0)
	for _, s := range d.Samples {
		if s.Channel == channel {
			out.Samples = append(out.Samples, s)
		}
	}
	return out
}

// Append concatenates the samples of b onto a copy of a. Observations are not
// deduplicated.
func Append(a, b *Dataset) (*Dataset, error) {
	if a.Polarisation != b.Polarisation {
		return nil, fmt.Errorf("cannot append %q (%s) to %q (%s): polarisation frames differ", b.Name, b.Polarisation, a.Name, a.Polarisation)
	}
	out := a.shallowCopy(len(a.Samples) + len(b.Samples))
	if b.NumChannels() > out.NumChannels() {
		out.Frequencies = append(out.Frequencies, b.Frequencies[out.NumChannels():]...)
	}
	out.Samples = append(out.Samples, a.Samples...)
	out.Samples = append(out.Samples, b.Samples...)
	return out, nil
}

// UVCut removes every sample further than cutoff wavelengths from the uv origin.
func UVCut(d *Dataset, cutoff float64) *Dataset {
	out := d.shallowCopy(len(d.Samples))
	for _, s := range d.Samples {
		if s.UVDistance() <= cutoff {
			out.Samples = append(out.Samples, s)
		}
	}
	return out
}

// Advise derives an image size and cell size that sample the synthesised beam
// with pixelsPerBeam pixels and cover the largest scale the data constrains.
func Advise(d *Dataset, cutoff, pixelsPerBeam float64) (Advice, error) {
	if cutoff <= 0 || math.IsNaN(cutoff) || math.IsInf(cutoff, 0) {
		return Advice{}, fmt.Errorf("uv cutoff must be positive and finite, got %v", cutoff)
	}
	if pixelsPerBeam <= 0 || math.IsNaN(pixelsPerBeam) || math.IsInf(pixelsPerBeam, 0) {
		return Advice{}, fmt.Errorf("pixels per beam must be positive and finite, got %v", pixelsPerBeam)
	}

	uvMax, uvMin := 0.0, math.Inf(1)
	for _, s := range d.Samples {
		dist := s.UVDistance()
		if dist == 0 || dist > cutoff {
			continue
		}
		uvMax = math.Max(uvMax, dist)
		uvMin = math.Min(uvMin, dist)
	}
	if uvMax == 0 {
		return Advice{}, ErrNoSamples
	}

	cell := (1.0 / uvMax) / pixelsPerBeam
	npixel := nextPow2(int(math.Ceil(pixelsPerBeam * uvMax / uvMin)))
	npixel = max(MinNPixel, min(MaxNPixel, npixel))

	return Advice{NPixel: npixel, Cell: cell, UVMax: uvMax, UVMin: uvMin}, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
