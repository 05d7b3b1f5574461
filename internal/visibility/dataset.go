// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the in-memory form of a calibrated measurement set.
//
// Why a flat sample list?
//
// Every stage downstream of the loader (uv cut, gridding, moments) walks the
// samples once and filters on channel or uv-distance. A flat slice of
// fixed-size records keeps those walks cache friendly and lets a per-channel
// view share nothing with its siblings, which is what allows work units for
// different channels to run on different workers without coordination.
package visibility

import "math"

// Correlation products, in storage order.
const (
	XX = iota
	XY
	YX
	YY
	NumCorrelations
)

// Visibility is one calibrated sample for one baseline, time and channel.
// U, V and W are expressed in wavelengths.
type Visibility struct {
	U       float64                  `msgpack:"u"`
	V       float64                  `msgpack:"v"`
	W       float64                  `msgpack:"w"`
	Time    float64                  `msgpack:"t"`
	Channel int                      `msgpack:"ch"`
	Weight  float64                  `msgpack:"wt"`
	Re      [NumCorrelations]float64 `msgpack:"re"`
	Im      [NumCorrelations]float64 `msgpack:"im"`
}

// UVDistance is the projected baseline length in the uv-plane.
func (v Visibility) UVDistance() float64 {
	return math.Hypot(v.U, v.V)
}

// PhaseCentre is the pointing direction, in degrees.
type PhaseCentre struct {
	RA  float64 `msgpack:"ra"`
	Dec float64 `msgpack:"dec"`
}

// Dataset is the opaque handle to one measurement set over one channel range.
// It is treated as immutable once loaded; every operation in this package
// returns a new Dataset.
type Dataset struct {
	Name         string       `msgpack:"name"`
	Polarisation string       `msgpack:"polarisation"`
	Frequencies  []float64    `msgpack:"frequencies"`
	PhaseCentre  PhaseCentre  `msgpack:"phase_centre"`
	Samples      []Visibility `msgpack:"samples"`
}

// NumChannels returns the number of channels the dataset describes.
func (d *Dataset) NumChannels() int {
	return len(d.Frequencies)
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Frequency returns the centre frequency of a channel in Hz, or 0 if the
// channel is out of range.
func (d *Dataset) Frequency(channel int) float64 {
	if channel < 0 || channel >= len(d.Frequencies) {
		return 0
	}
	return d.Frequencies[channel]
}

// shallowCopy copies the metadata of d and leaves Samples empty.
func (d *Dataset) shallowCopy(capacity int) *Dataset {
	freqs := make([]float64, len(d.Frequencies))
	copy(freqs, d.Frequencies)
	return &Dataset{
		Name:         d.Name,
		Polarisation: d.Polarisation,
		Frequencies:  freqs,
		PhaseCentre:  d.PhaseCentre,
		Samples:      make([]Visibility, 0, capacity),
	}
}
