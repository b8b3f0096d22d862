package config

import (
	"github.com/marmos91/tcprelay/pkg/metrics"
)

// MetricsResult holds what InitializeMetrics created. Both fields are nil
// when metrics are disabled.
type MetricsResult struct {
	// Server serves /metrics on the configured port
	Server *metrics.Server

	// Relay records relay activity. Pass it to relay.New.
	Relay metrics.RelayMetrics
}

// InitializeMetrics creates the process registry, the relay recorders and
// the metrics server when cfg.Metrics.Enabled is set.
//
// The Prometheus implementation registers itself from
// pkg/metrics/prometheus; callers import it for its side effect.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		return MetricsResult{}
	}

	reg := metrics.InitRegistry()
	return MetricsResult{
		Server: metrics.NewServer(cfg.Metrics.Port, reg),
		Relay:  metrics.NewRelayMetrics(),
	}
}
