package config

import (
	"strings"
	"time"

	"github.com/marmos91/tcprelay/pkg/adapter/relay"
	"github.com/marmos91/tcprelay/pkg/api"
)

// DefaultShutdownTimeout bounds graceful shutdown when unset.
const DefaultShutdownTimeout = 30 * time.Second

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyRelayDefaults(&cfg.Relay, cfg.ShutdownTimeout)
	applyMetricsDefaults(&cfg.Metrics)
	applyControlPlaneDefaults(&cfg.ControlPlane)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// applyRelayDefaults fills the relay section from relay.DefaultConfig.
// A zero port in the file means the default port; an ephemeral listener is
// only available when building the adapter directly.
func applyRelayDefaults(cfg *relay.Config, shutdownTimeout time.Duration) {
	def := relay.DefaultConfig()

	if cfg.BindAddress == "" {
		cfg.BindAddress = def.BindAddress
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = def.Backlog
	}
	if cfg.ReadChunkSize == 0 {
		cfg.ReadChunkSize = def.ReadChunkSize
	}
	if cfg.EventBatch == 0 {
		cfg.EventBatch = def.EventBatch
	}
	cfg.ShutdownTimeout = shutdownTimeout
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyControlPlaneDefaults sets control plane API server defaults.
func applyControlPlaneDefaults(cfg *api.APIConfig) {
	cfg.ApplyDefaults()
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
