package workunit

import (
	"fmt"

	"github.com/vk/dprepgo/internal/visibility"
)

// Options is the run configuration shared by every unit of a run.
type Options struct {
	Stations         []string
	StationPositions [][3]float64
	ApplyIonosphere  bool
	ApplyBeam        bool
	MakePlots        bool
	UVCutoff         float64
	PixelsPerBeam    float64
	Polarisation     string
	ResultsDir       string
	ForceResolution  float64
	Ionosphere1      *IonosphereCorrection
	Ionosphere2      *IonosphereCorrection
	TwoD             bool
	Advice           visibility.Advice
}

// Builder turns the loaded datasets into per-channel work units. It performs
// no I/O.
type Builder struct {
	vis1, vis2 *visibility.Dataset
	opts       Options
}

// NewBuilder creates a builder over two loaded datasets.
func NewBuilder(vis1, vis2 *visibility.Dataset, opts Options) *Builder {
	return &Builder{vis1: vis1, vis2: vis2, opts: opts}
}

// Build returns the validated unit for one channel.
func (b *Builder) Build(channel int) (*WorkUnit, error) {
	if b.vis1 == nil || b.vis2 == nil {
		return nil, fmt.Errorf("channel %d: both datasets are required", channel)
	}
	if channel < 0 || channel >= b.vis1.NumChannels() || channel >= b.vis2.NumChannels() {
		return nil, fmt.Errorf("channel %d is outside the loaded range", channel)
	}
	u := &WorkUnit{
		Vis1:             visibility.Channel(b.vis1, channel),
		Vis2:             visibility.Channel(b.vis2, channel),
		Channel:          channel,
		Stations:         b.opts.Stations,
		StationPositions: b.opts.StationPositions,
		ApplyIonosphere:  b.opts.ApplyIonosphere,
		ApplyBeam:        b.opts.ApplyBeam,
		MakePlots:        b.opts.MakePlots,
		UVCutoff:         b.opts.UVCutoff,
		PixelsPerBeam:    b.opts.PixelsPerBeam,
		Polarisation:     b.opts.Polarisation,
		ResultsDir:       b.opts.ResultsDir,
		ForceResolution:  b.opts.ForceResolution,
		Ionosphere1:      b.opts.Ionosphere1,
		Ionosphere2:      b.opts.Ionosphere2,
		TwoD:             b.opts.TwoD,
		NPixel:           b.opts.Advice.NPixel,
		Cell:             b.opts.Advice.Cell,
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("channel %d: invalid work unit: %w", channel, err)
	}
	return u, nil
}

// BuildAll returns one unit per channel in [0, n), in channel order.
func (b *Builder) BuildAll(n int) ([]*WorkUnit, error) {
	if n <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", n)
	}
	units := make([]*WorkUnit, 0, n)
	for ch := 0; ch < n; ch++ {
		u, err := b.Build(ch)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}
