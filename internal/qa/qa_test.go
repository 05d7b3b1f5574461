package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/imaging"
)

func TestSummarize_PlaneStatistics(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	im := imaging.NewImage(5, 2, 1e-3)
	im.Frequency = 120e6
	copy(im.Planes[imaging.StokesI], []float64{1, -3, 2, 4})

	// --- Act ---
	s := Summarize("dprepgo", im)

	// --- Assert ---
	require.Len(t, s.Planes, imaging.NumStokes)
	i := s.Planes[imaging.StokesI]
	assert.Equal(t, "I", i.Stokes)
	assert.Equal(t, 4.0, i.Max)
	assert.Equal(t, -3.0, i.Min)
	assert.Equal(t, 4.0, i.MaxAbs)
	assert.Equal(t, 4.0, i.Sum)
	assert.Equal(t, 1.5, i.Median)
	assert.Equal(t, 2.5, i.MedianAbs)
	assert.InDelta(t, 2.7386127875, i.RMS, 1e-9)
	assert.Equal(t, 5, s.Channel)
	assert.Equal(t, "V", s.Planes[imaging.StokesV].Stokes)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	s := Summarize("dprepgo", imaging.NewImage(1, 2, 1e-3))

	b, err := Encode(s)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = Decode([]byte{0xc1})
	assert.Error(t, err)
}
