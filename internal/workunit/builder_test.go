package workunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/testutil"
	"github.com/vk/dprepgo/internal/visibility"
)

func newOptions(dir string) Options {
	return Options{
		UVCutoff:        450,
		PixelsPerBeam:   5,
		Polarisation:    "linear",
		ResultsDir:      dir,
		ForceResolution: 8,
		TwoD:            true,
		Advice:          visibility.Advice{NPixel: 256, Cell: 1e-3, UVMax: 200, UVMin: 10},
	}
}

func TestBuildAll_OneUnitPerChannelInOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	vis1 := testutil.Dataset("a", 6, 8)
	vis2 := testutil.Dataset("b", 6, 8)
	b := NewBuilder(vis1, vis2, newOptions(t.TempDir()))

	// --- Act ---
	units, err := b.BuildAll(6)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, units, 6)
	for i, u := range units {
		assert.Equal(t, i, u.Channel)
		assert.Equal(t, 256, u.NPixel)
		assert.Equal(t, 8, u.Vis1.Len())
		for _, s := range u.Vis1.Samples {
			assert.Equal(t, i, s.Channel)
		}
		assert.Nil(t, u.Stations)
		assert.Nil(t, u.Ionosphere1)
	}
	assert.Equal(t, 48, vis1.Len(), "the source dataset must be left intact")
}

func TestBuild_Validation(t *testing.T) {
	t.Parallel()

	vis := testutil.Dataset("a", 2, 4)

	testCases := []struct {
		name    string
		mutate  func(*Options)
		channel int
	}{
		{"channel out of range", func(*Options) {}, 2},
		{"negative channel", func(*Options) {}, -1},
		{"npixel not power of two", func(o *Options) { o.Advice.NPixel = 100 }, 0},
		{"zero cell", func(o *Options) { o.Advice.Cell = 0 }, 0},
		{"missing results dir", func(o *Options) { o.ResultsDir = "" }, 0},
		{"ionosphere without tables", func(o *Options) { o.ApplyIonosphere = true }, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := newOptions("/tmp/out")
			tc.mutate(&opts)
			_, err := NewBuilder(vis, vis, opts).Build(tc.channel)
			assert.Error(t, err)
		})
	}
}

func TestBuildAll_RejectsNonPositiveCount(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder(testutil.Dataset("a", 1, 1), testutil.Dataset("b", 1, 1), newOptions("/tmp")).BuildAll(0)
	assert.Error(t, err)
}
