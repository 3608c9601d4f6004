package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":8000", cfg.Listen)
		assert.Equal(t, 10, cfg.DepthLevels)
	})

	t.Run("reads file and expands env", func(t *testing.T) {
		t.Setenv("ENGINE_PORT", "9100")

		path := filepath.Join(t.TempDir(), "config.yaml")
		data := "service_name: engine-test\nlisten: \":${ENGINE_PORT}\"\ndepth_levels: 5\nlog_level: debug\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "engine-test", cfg.ServiceName)
		assert.Equal(t, ":9100", cfg.Listen)
		assert.Equal(t, 5, cfg.DepthLevels)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid depth levels rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("depth_levels: -1\n"), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})
}
