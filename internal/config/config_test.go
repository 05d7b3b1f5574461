package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SingleFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeFile(t, t.TempDir(), "pipeline.hcl", `
pipeline {
  scheduler    = "scheduler:8786"
  channels     = 10
  twod         = false
  uvcut        = 300.5
  inst         = "LOFAR"
  task_timeout = "5m"
}
`)

	// --- Act ---
	p, err := Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	require.NotNil(t, p.Scheduler)
	assert.Equal(t, "scheduler:8786", *p.Scheduler)
	assert.Equal(t, 10, *p.Channels)
	assert.False(t, *p.TwoD)
	assert.Equal(t, 300.5, *p.UVCut)
	assert.Equal(t, "LOFAR", *p.Instrument)
	assert.Equal(t, "5m", *p.TaskTimeout)
	assert.Nil(t, p.Workers, "absent attributes stay unset")
	assert.Nil(t, p.Queues)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("DPREP_TEST_DATA", "/srv/data")
	path := writeFile(t, t.TempDir(), "pipeline.hcl", `
pipeline {
  inputs = "${env.DPREP_TEST_DATA}/inputs"
}
`)

	p, err := Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "/srv/data/inputs", *p.Inputs)
}

func TestLoad_DirectoryLaterFilesOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
pipeline {
  channels = 4
  workers  = 2
}
`)
	writeFile(t, dir, "b/override.hcl", `
pipeline {
  channels = 8
}
`)
	writeFile(t, dir, ".hidden.hcl", `not valid hcl {`)

	p, err := Load(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 8, *p.Channels)
	assert.Equal(t, 2, *p.Workers)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "syntax", body: "pipeline {\n  channels = \n", wantErr: "failed to parse"},
		{name: "unknown attribute", body: "pipeline {\n  colour = \"red\"\n}\n", wantErr: "failed to decode"},
		{name: "wrong type", body: "pipeline {\n  channels = \"many\"\n}\n", wantErr: "failed to decode"},
		{name: "missing block", body: "", wantErr: "failed to decode"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), "pipeline.hcl", tc.body)

			_, err := Load(context.Background(), path)

			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoad_MissingPathAndEmptyDir(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.hcl"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no .hcl files")
}

func TestValidName(t *testing.T) {
	t.Parallel()

	assert.True(t, validName("HOME"))
	assert.True(t, validName("_x1"))
	assert.False(t, validName("1ABC"))
	assert.False(t, validName("=C:"))
}
