// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package imaging holds the per-channel imaging task executed on the workers
// and the image product it returns.
//
// The imager is a reference implementation: it converts correlations to
// Stokes parameters, grids them, transforms to the image plane and
// deconvolves with a Hogbom CLEAN before restoring with a Gaussian beam. Any
// function with the session.TaskFunc signature that accepts a
// *workunit.WorkUnit and returns an *Image can replace it.
package imaging

import "github.com/vk/dprepgo/internal/visibility"

// Stokes planes, in storage order.
const (
	StokesI = iota
	StokesQ
	StokesU
	StokesV
	NumStokes
)

// Image is the restored sky image of one channel.
type Image struct {
	Channel     int
	NPixel      int
	Cell        float64
	Frequency   float64
	PhaseCentre visibility.PhaseCentre
	// Planes holds one NPixel×NPixel row-major plane per Stokes parameter.
	Planes [][]float64
	// Path is where the worker wrote the image, if it did.
	Path string
}

// NewImage allocates a zeroed image.
func NewImage(channel, npixel int, cell float64) *Image {
	planes := make([][]float64, NumStokes)
	for i := range planes {
		planes[i] = make([]float64, npixel*npixel)
	}
	return &Image{Channel: channel, NPixel: npixel, Cell: cell, Planes: planes}
}

// At returns the value of plane p at column x, row y.
func (im *Image) At(p, x, y int) float64 {
	return im.Planes[p][y*im.NPixel+x]
}

// Peak returns the largest value of plane p and its position.
func (im *Image) Peak(p int) (value float64, x, y int) {
	plane := im.Planes[p]
	best := 0
	for i, v := range plane {
		if v > plane[best] {
			best = i
		}
	}
	return plane[best], best % im.NPixel, best / im.NPixel
}
