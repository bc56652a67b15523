package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("quality: 70\ninterpolation: bicubic\nforce: true\nlog_level: debug\n"), 0o644))

		cfg, err := loadConfig(path)
		require.NoError(t, err)
		require.NotNil(t, cfg.Quality)
		assert.Equal(t, 70, *cfg.Quality)
		assert.Equal(t, "bicubic", cfg.Interpolation)
		require.NotNil(t, cfg.Force)
		assert.True(t, *cfg.Force)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("explicit file missing", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err)
	})

	t.Run("default location missing", func(t *testing.T) {
		t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "none.yaml"))
		cfg, err := loadConfig("")
		require.NoError(t, err)
		assert.Nil(t, cfg.Quality)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("quality: [\n"), 0o644))
		_, err := loadConfig(path)
		require.Error(t, err)
	})
}

func TestConfigDefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	writePNG(t, srcPath)
	jptPath := filepath.Join(dir, "c.jpt")
	require.NoError(t, os.WriteFile(jptPath, []byte("old"), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("force: true\nquality: 60\n"), 0o644))

	_, err := runTool(t, "--config", cfgPath, "convert", srcPath, jptPath)
	require.NoError(t, err)

	data, err := os.ReadFile(jptPath)
	require.NoError(t, err)
	assert.Equal(t, "JPT", string(data[:3]))
}
