package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{
		"# relayd Configuration File",
		"logging:",
		"telemetry:",
		"relay:",
		"metrics:",
		"controlplane:",
	} {
		assert.Contains(t, string(content), section)
	}

	var cfg Config
	require.NoError(t, yaml.Unmarshal(content, &cfg), "sample must be valid YAML")

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = InitConfig(true)
	assert.NoError(t, err)
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom", "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	assert.FileExists(t, path)

	err := InitConfigToPath(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, nil, 0644))
	require.NoError(t, InitConfigToPath(path, true))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestGeneratedConfigMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)

	def := GetDefaultConfig()
	assert.Equal(t, def.Logging, cfg.Logging)
	assert.Equal(t, def.Telemetry.Endpoint, cfg.Telemetry.Endpoint)
	assert.Equal(t, def.Telemetry.SampleRate, cfg.Telemetry.SampleRate)
	assert.Equal(t, def.Telemetry.Profiling, cfg.Telemetry.Profiling)
	assert.Equal(t, def.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, def.Relay, cfg.Relay)
	assert.Equal(t, def.ControlPlane.Address(), cfg.ControlPlane.Address())
	assert.True(t, cfg.ControlPlane.IsEnabled())
	assert.False(t, cfg.Metrics.Enabled)
}
