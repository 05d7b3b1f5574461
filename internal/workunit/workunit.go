// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package workunit builds the self-contained per-channel inputs of the imaging
// stage.
//
// A WorkUnit carries everything one imaging task needs, including the
// advisory gridding parameters computed once by the loader. Fields that are
// not used by a given run (station lists, ionospheric corrections) are present
// and explicitly nil rather than omitted, so every unit has the same shape.
//
// Units for different channels never share sample memory: the builder hands
// each unit its own channel view of both datasets.
package workunit

import (
	"errors"
	"fmt"
	"math"

	"github.com/vk/dprepgo/internal/visibility"
)

// IonosphereCorrection holds rotation-measure corrections for one dataset.
type IonosphereCorrection struct {
	// RM is the rotation measure per station and time, rad/m².
	RM [][]float64
	// Times are the sample times of RM.
	Times []float64
	// TimeIndices map each visibility time onto a row of RM.
	TimeIndices []int
}

// WorkUnit is the complete input of one imaging task for one channel.
type WorkUnit struct {
	Vis1, Vis2 *visibility.Dataset
	Channel    int

	// Stations and StationPositions are nil unless station-based corrections
	// are requested.
	Stations         []string
	StationPositions [][3]float64

	ApplyIonosphere bool
	ApplyBeam       bool
	MakePlots       bool

	UVCutoff      float64
	PixelsPerBeam float64
	Polarisation  string
	ResultsDir    string
	// ForceResolution is the restoring beam FWHM in arcminutes.
	ForceResolution float64

	Ionosphere1 *IonosphereCorrection
	Ionosphere2 *IonosphereCorrection

	TwoD   bool
	NPixel int
	// Cell is the pixel size in radians.
	Cell float64
}

// Validate reports the first field that makes the unit unusable.
func (u *WorkUnit) Validate() error {
	switch {
	case u.Vis1 == nil || u.Vis2 == nil:
		return errors.New("both datasets are required")
	case u.Channel < 0:
		return fmt.Errorf("channel must be non-negative, got %d", u.Channel)
	case !positive(u.UVCutoff):
		return fmt.Errorf("uv cutoff must be positive, got %v", u.UVCutoff)
	case !positive(u.PixelsPerBeam):
		return fmt.Errorf("pixels per beam must be positive, got %v", u.PixelsPerBeam)
	case !positive(u.ForceResolution):
		return fmt.Errorf("resolution must be positive, got %v", u.ForceResolution)
	case u.NPixel <= 0 || u.NPixel&(u.NPixel-1) != 0:
		return fmt.Errorf("npixel must be a positive power of two, got %d", u.NPixel)
	case !positive(u.Cell):
		return fmt.Errorf("cell must be positive, got %v", u.Cell)
	case u.Polarisation == "":
		return errors.New("polarisation frame is required")
	case u.ResultsDir == "":
		return errors.New("results directory is required")
	case u.ApplyIonosphere && (u.Ionosphere1 == nil || u.Ionosphere2 == nil):
		return errors.New("ionospheric correction requested without correction tables")
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
