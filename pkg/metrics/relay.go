package metrics

import (
	"time"
)

// Frame outcomes recorded by RecordFrame.
const (
	OutcomeDelivered = "delivered"
	OutcomeMalformed = "malformed"
	OutcomeNotFound  = "not_found"
)

// Byte directions recorded by RecordBytes.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// RelayMetrics provides observability for the relay adapter.
//
// Implementations must be safe for concurrent use by the reactor and every
// worker. Pass nil to disable collection.
//
// Example usage:
//
//	metrics.InitRegistry()
//	m := metrics.NewRelayMetrics()
//	a, err := relay.New(cfg, m)
type RelayMetrics interface {
	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	// reason is one of "eof", "read_error", "write_error".
	RecordConnectionClosed(reason string)

	// RecordConnectionForceClosed counts connections closed by shutdown.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the live connection gauge.
	SetActiveConnections(count int32)

	// RecordFrame counts one routed frame by outcome
	// (OutcomeDelivered, OutcomeMalformed, OutcomeNotFound).
	RecordFrame(outcome string)

	// RecordBytes counts socket bytes by direction (DirectionIn, DirectionOut).
	RecordBytes(direction string, n int)

	// ObserveTask records how long a worker spent executing one task.
	// kind is "read" or "write".
	ObserveTask(kind string, duration time.Duration)

	// SetQueueDepth updates the pending task gauge.
	SetQueueDepth(n int)
}

// NewRelayMetrics returns the Prometheus-backed RelayMetrics, or nil when
// metrics are disabled or no implementation has been registered.
func NewRelayMetrics() RelayMetrics {
	if !IsEnabled() || newPrometheusRelayMetrics == nil {
		return nil
	}
	return newPrometheusRelayMetrics()
}

// newPrometheusRelayMetrics is set by pkg/metrics/prometheus during init,
// which keeps this package free of the implementation import.
var newPrometheusRelayMetrics func() RelayMetrics

// RegisterRelayMetricsConstructor registers the RelayMetrics implementation.
func RegisterRelayMetricsConstructor(constructor func() RelayMetrics) {
	newPrometheusRelayMetrics = constructor
}
