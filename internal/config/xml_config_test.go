package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "2Min", cfg.Chart.DefaultResolution)
	assert.Equal(t, 1200, cfg.Chart.PanelWidth)
	assert.Equal(t, 60, cfg.Chart.PanelHeight)

	// File was written for the next run
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Chart.DefaultResolution = "30S"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
	assert.Equal(t, "30S", loaded.Chart.DefaultResolution)
}

func TestLoadConfigRejectsMalformedXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")
	require.NoError(t, os.WriteFile(path, []byte("<FPSLogVisualizer><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")
	require.NoError(t, DefaultConfig().Save(path))

	t.Setenv("PORT", "7070")
	t.Setenv("DATA_DIR", "/var/fps-data")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/var/fps-data", cfg.Storage.DataDirectory)
}

func TestRelativePathsResolvedAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.config")
	require.NoError(t, DefaultConfig().Save(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.Storage.UploadsDirectory)
	assert.True(t, filepath.IsAbs(cfg.GetUploadDir()))
}
