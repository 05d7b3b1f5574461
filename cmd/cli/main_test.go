package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dprepgo/internal/cli"
	"github.com/vk/dprepgo/internal/loader"
	"github.com/vk/dprepgo/internal/testutil"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"-h"})

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
	assert.Equal(t, 2, exitCode(err))
}

func TestRun_MissingInputs(t *testing.T) {
	t.Parallel()

	args := []string{"--inputs", t.TempDir(), "--outputs", filepath.Join(t.TempDir(), "out")}

	err := run(context.Background(), &bytes.Buffer{}, args)

	var loadErr *loader.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, 1, exitCode(err))
}

func TestRun_ImagesChannels(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	inputs := t.TempDir()
	testutil.WriteDataset(t, inputs, "sim-1.ms", 2, 30)
	testutil.WriteDataset(t, inputs, "sim-2.ms", 2, 30)
	outputs := filepath.Join(t.TempDir(), "out")
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"--inputs", inputs, "--outputs", outputs, "--channels", "2"})

	// --- Assert ---
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outputs, "imaging_clean_2D-0.fits"))
	assert.FileExists(t, filepath.Join(outputs, "imaging_clean_2D-1.fits"))
	assert.Contains(t, out.String(), "Imaging run finished")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(&cli.ExitError{Code: 2, Message: "usage"}))
}

func TestGuard_RecoversPanic(t *testing.T) {
	t.Parallel()

	err := guard(func() error { panic("corrupt visibilities") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run panicked")
	assert.Contains(t, err.Error(), "corrupt visibilities")
	assert.Equal(t, 1, exitCode(err))
}

func TestGuard_PassesErrorThrough(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	assert.ErrorIs(t, guard(func() error { return want }), want)
	assert.NoError(t, guard(func() error { return nil }))
}
