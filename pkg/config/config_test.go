package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tcprelay/internal/bytesize"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: "info"
relay:
  port: 9999
  read_chunk_size: 4KiB
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level, "level is normalized")
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, 9999, cfg.Relay.Port)
	assert.Equal(t, 4*bytesize.KiB, cfg.Relay.ReadChunkSize)
	assert.Equal(t, 4, cfg.Relay.Workers)
	assert.Equal(t, "0.0.0.0", cfg.Relay.BindAddress)
	assert.Equal(t, 30*time.Second, cfg.Relay.ShutdownTimeout, "relay inherits the shutdown timeout")

	assert.Equal(t, 8080, cfg.ControlPlane.Port)
	assert.Equal(t, "127.0.0.1", cfg.ControlPlane.BindAddress)
	assert.True(t, cfg.ControlPlane.IsEnabled())
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, GetDefaultConfig().Relay.Port, cfg.Relay.Port)
	assert.Equal(t, 8888, cfg.Relay.Port)
	assert.Equal(t, 8080, cfg.ControlPlane.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
shutdown_timeout = "5s"

[logging]
level = "WARN"
format = "json"

[relay]
workers = 8
read_chunk_size = "2KiB"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Relay.Workers)
	assert.Equal(t, 2*bytesize.KiB, cfg.Relay.ReadChunkSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
relay:
  port: 9000
`)
	t.Setenv("RELAYD_RELAY_PORT", "9100")
	t.Setenv("RELAYD_RELAY_WORKERS", "2")
	t.Setenv("RELAYD_LOGGING_LEVEL", "debug")
	t.Setenv("RELAYD_CONTROLPLANE_ENABLED", "false")
	t.Setenv("RELAYD_TELEMETRY_PROFILING_PROFILE_TYPES", "cpu,goroutines")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Relay.Port, "env beats file")
	assert.Equal(t, 2, cfg.Relay.Workers, "env applies to keys absent from the file")
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.False(t, cfg.ControlPlane.IsEnabled())
	assert.Equal(t, []string{"cpu", "goroutines"}, cfg.Telemetry.Profiling.ProfileTypes)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  format: xml
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "Logging.Format")
}

func TestLoad_BadByteSize(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
relay:
  read_chunk_size: lots
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMustLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := MustLoad(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relayd config init --config "+missing)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err = MustLoad("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration file found")
}

func TestMustLoad_DefaultLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := InitConfig(false)
	require.NoError(t, err)
	assert.True(t, DefaultConfigExists())

	cfg, err := MustLoad("")
	require.NoError(t, err)
	assert.Equal(t, 8888, cfg.Relay.Port)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Relay.Port = 7777
	cfg.Relay.ReadChunkSize = 8 * bytesize.KiB
	cfg.ShutdownTimeout = 12 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, loaded.Relay.Port)
	assert.Equal(t, 8*bytesize.KiB, loaded.Relay.ReadChunkSize)
	assert.Equal(t, 12*time.Second, loaded.ShutdownTimeout)
	assert.Equal(t, cfg.Logging, loaded.Logging)
}

func TestConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "relayd"), GetConfigDir())
	assert.Equal(t, filepath.Join(dir, "relayd", "config.yaml"), GetDefaultConfigPath())
	assert.False(t, DefaultConfigExists())
}
