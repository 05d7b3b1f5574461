package testutil

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/visibility"
)

// goldenAngle spreads synthetic baselines evenly around the uv-plane.
const goldenAngle = 2.399963229728653

// Dataset builds a synthetic measurement set of a unit point source at the
// phase centre. Each channel carries perChannel samples on a spiral running
// from 10 to roughly 510 wavelengths, so a 450 wavelength cut drops the
// outermost tenth.
func Dataset(name string, channels, perChannel int) *visibility.Dataset {
	ds := &visibility.Dataset{
		Name:         name,
		Polarisation: "linear",
		PhaseCentre:  visibility.PhaseCentre{RA: 15, Dec: -45},
	}
	for ch := 0; ch < channels; ch++ {
		ds.Frequencies = append(ds.Frequencies, 100e6+float64(ch)*1e6)
		for i := 0; i < perChannel; i++ {
			r := 10 + float64(i)*500/float64(perChannel)
			theta := float64(i) * goldenAngle
			s := visibility.Visibility{
				U:       r * math.Cos(theta),
				V:       r * math.Sin(theta),
				W:       float64(i%7) - 3,
				Time:    float64(i),
				Channel: ch,
				Weight:  1,
			}
			s.Re[visibility.XX] = 1
			s.Re[visibility.YY] = 1
			ds.Samples = append(ds.Samples, s)
		}
	}
	return ds
}

// WriteDataset stores a synthetic dataset as a measurement-set directory
// under dir and returns its path.
func WriteDataset(t *testing.T, dir, name string, channels, perChannel int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, visibility.Write(path, Dataset(name, channels, perChannel)))
	return path
}
