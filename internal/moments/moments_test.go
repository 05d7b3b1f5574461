package moments

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/imaging"
)

func TestCalc_MeanAndStd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	data := [][][]float64{
		{{1, 2}, {0, 0}},
		{{3, 2}, {0, 4}},
	}

	// --- Act ---
	m, err := Calc(data)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 2, m.Channels)
	assert.Equal(t, []float64{2, 2}, m.Mean[0])
	assert.Equal(t, []float64{1, 0}, m.Std[0])
	assert.Equal(t, []float64{0, 2}, m.Mean[1])
	assert.Equal(t, []float64{0, 2}, m.Std[1])
}

func TestCalc_RejectsRaggedInput(t *testing.T) {
	t.Parallel()

	_, err := Calc(nil)
	assert.Error(t, err)

	_, err = Calc([][][]float64{{{1, 2}}, {{1}}})
	assert.Error(t, err)
}

func TestSave_WritesIntoMomentsDir(t *testing.T) {
	t.Parallel()

	ref := imaging.NewImage(0, 2, 1e-3)
	m, err := Calc([][][]float64{ref.Planes, ref.Planes})
	require.NoError(t, err)

	out := t.TempDir()
	paths, err := Save(out, m, ref)

	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.Equal(t, filepath.Join(out, Dir), filepath.Dir(p))
		assert.FileExists(t, p)
	}
}
