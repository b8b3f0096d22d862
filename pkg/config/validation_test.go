package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tcprelay/internal/bytesize"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"invalid log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"missing output", func(c *Config) { c.Logging.Output = "" }, "required"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "ShutdownTimeout"},
		{"api port too large", func(c *Config) { c.ControlPlane.Port = 70000 }, "max"},
		{"api port negative", func(c *Config) { c.ControlPlane.Port = -1 }, "min"},
		{"api bind address", func(c *Config) { c.ControlPlane.BindAddress = "localhost" }, "'ip'"},
		{"relay port too large", func(c *Config) { c.Relay.Port = 65536 }, "Relay.Port"},
		{"relay bind address", func(c *Config) { c.Relay.BindAddress = "not-an-ip" }, "Relay.BindAddress"},
		{"relay workers", func(c *Config) { c.Relay.Workers = 5000 }, "Relay.Workers"},
		{"read chunk too large", func(c *Config) { c.Relay.ReadChunkSize = 32 * bytesize.MiB }, "read_chunk_size"},
		{"sample rate out of range", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "lte"},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry.endpoint"},
		{"unknown profile type", func(c *Config) {
			c.Telemetry.Profiling.Enabled = true
			c.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heapz"}
		}, "heapz"},
		{"metrics port collides with api", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = c.ControlPlane.Port
		}, "must differ"},
		{"metrics port collides with relay", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = c.Relay.Port
		}, "must differ"},
		{"metrics port collision ignored when disabled", func(c *Config) {
			c.Metrics.Port = c.Relay.Port
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		assert.NoError(t, Validate(cfg), level)
		assert.Equal(t, level, cfg.Logging.Level, "validation does not normalize")
	}
}
