package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Kernel.MeshCells)
	assert.Equal(t, "out", cfg.Output.Dir)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokamak.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kernel:
  mesh_cells: 64
build:
  workers: 4
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Kernel.MeshCells)
	assert.Equal(t, 96, cfg.Kernel.VolumeCells, "unset fields keep defaults")
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"mesh cells too small", "kernel:\n  mesh_cells: 2\n", "MeshCells"},
		{"negative workers", "build:\n  workers: -1\n", "Workers"},
		{"unknown level", "log:\n  level: loud\n", "Level"},
		{"unknown format", "log:\n  format: xml\n", "Format"},
		{"empty output", "output:\n  dir: \"\"\n", "Dir"},
		{"no artifacts path", "store:\n  artifacts: \"\"\n", "store.artifacts"},
		{"bad yaml", "kernel: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "tokamak.yaml")
	cfg := Default()
	cfg.Build.Workers = 3
	require.NoError(t, cfg.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvPath, "/from/env.yaml")
	assert.Equal(t, "/explicit.yaml", Path("/explicit.yaml"))
	assert.Equal(t, "/from/env.yaml", Path(""))
}
