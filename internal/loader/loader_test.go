package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/testutil"
	"github.com/vk/dprepgo/internal/visibility"
)

func TestLoadPair_TenChannels(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	ms1 := testutil.WriteDataset(t, dir, "sim-1.ms", 12, 50)
	ms2 := testutil.WriteDataset(t, dir, "sim-2.ms", 12, 50)

	// --- Act ---
	res, err := LoadPair(context.Background(), Request{
		Path1:         ms1,
		Path2:         ms2,
		Channels:      10,
		Polarisation:  "linear",
		UVCutoff:      450,
		PixelsPerBeam: 5,
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 10, res.Vis1.NumChannels())
	assert.Equal(t, 10, res.Vis2.NumChannels())
	assert.Equal(t, 500, res.Vis1.Len(), "only samples of the first 10 channels are kept")
	for _, s := range res.Merged.Samples {
		assert.LessOrEqual(t, s.UVDistance(), 450.0)
	}
	assert.Less(t, res.Merged.Len(), res.Vis1.Len()+res.Vis2.Len(), "the uv cut must drop the outer samples")
	assert.Greater(t, res.Advice.Cell, 0.0)
	assert.GreaterOrEqual(t, res.Advice.NPixel, visibility.MinNPixel)
	assert.LessOrEqual(t, res.Advice.NPixel, visibility.MaxNPixel)
}

func TestLoadPair_MissingPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ms1 := testutil.WriteDataset(t, dir, "sim-1.ms", 4, 10)
	missing := filepath.Join(dir, "nope.ms")

	_, err := LoadPair(context.Background(), Request{
		Path1: ms1, Path2: missing, Channels: 4, UVCutoff: 450, PixelsPerBeam: 5,
	})

	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr), "expected DataLoadError, got %v", err)
	assert.Equal(t, missing, loadErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPair_MalformedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ms1 := testutil.WriteDataset(t, dir, "sim-1.ms", 4, 10)
	bad := filepath.Join(dir, "bad.msgpack")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not msgpack"), 0o644))

	_, err := LoadPair(context.Background(), Request{
		Path1: bad, Path2: ms1, Channels: 4, UVCutoff: 450, PixelsPerBeam: 5,
	})

	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, bad, loadErr.Path)
}

func TestLoadPair_Rejections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ms1 := testutil.WriteDataset(t, dir, "sim-1.ms", 4, 10)
	ms2 := testutil.WriteDataset(t, dir, "sim-2.ms", 4, 10)

	testCases := []struct {
		name string
		req  Request
	}{
		{"too many channels", Request{Path1: ms1, Path2: ms2, Channels: 5, UVCutoff: 450, PixelsPerBeam: 5}},
		{"zero channels", Request{Path1: ms1, Path2: ms2, Channels: 0, UVCutoff: 450, PixelsPerBeam: 5}},
		{"polarisation mismatch", Request{Path1: ms1, Path2: ms2, Channels: 4, Polarisation: "circular", UVCutoff: 450, PixelsPerBeam: 5}},
		{"nothing survives cut", Request{Path1: ms1, Path2: ms2, Channels: 4, UVCutoff: 5, PixelsPerBeam: 5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadPair(context.Background(), tc.req)
			var loadErr *DataLoadError
			assert.True(t, errors.As(err, &loadErr), "expected DataLoadError, got %v", err)
		})
	}
}
