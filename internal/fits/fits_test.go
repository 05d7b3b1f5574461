package fits

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var buf bytes.Buffer
	hdr := Header{
		{Name: "CTYPE1", Value: "RA---SIN"},
		{Name: "CDELT1", Value: -0.25, Comment: "degrees"},
		{Name: "CHANNEL", Value: 7},
	}
	data := []float32{1, 2, 3, 4, 5, 6}

	// --- Act ---
	err := Write(&buf, hdr, []int{3, 2}, data)

	// --- Assert ---
	require.NoError(t, err)
	assert.Zero(t, buf.Len()%2880, "records are padded to the FITS block size")

	img, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, Bitpix, img.Bitpix)
	assert.Equal(t, []int{3, 2}, img.Axes)
	assert.Equal(t, data, img.Data)
	assert.Equal(t, "RA---SIN", img.Keys["CTYPE1"])
	assert.Equal(t, "-0.25", fmt.Sprint(img.Keys["CDELT1"]))
	assert.Equal(t, "7", fmt.Sprint(img.Keys["CHANNEL"]))
}

func TestWriteFile_FourAxes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cube.fits")
	data := make([]float32, 4*4*2)
	data[5] = 2.5

	require.NoError(t, WriteFile(path, nil, []int{4, 4, 2, 1}, data))

	img, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 2, 1}, img.Axes)
	assert.Equal(t, float32(2.5), img.Data[5])
}

func TestWrite_Rejects(t *testing.T) {
	t.Parallel()

	assert.ErrorContains(t, Write(&bytes.Buffer{}, nil, []int{2, 2}, []float32{1}), "needs 4 values")
	assert.ErrorContains(t, Write(&bytes.Buffer{}, nil, []int{0}, nil), "invalid axis")
	assert.ErrorContains(t, Write(&bytes.Buffer{}, Header{{Name: "TOOLONGKEY", Value: 1}}, []int{1}, []float32{0}), "longer than 8")
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(t.TempDir(), "none.fits"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
