// Package prometheus provides the Prometheus implementations of the metrics
// interfaces. Import it for its side effect of registering the constructors.
package prometheus

import (
	"time"

	"github.com/marmos91/tcprelay/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterRelayMetricsConstructor(func() metrics.RelayMetrics {
		return NewRelayMetrics(metrics.GetRegistry())
	})
}

// relayMetrics is the Prometheus implementation of metrics.RelayMetrics.
type relayMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      *prometheus.CounterVec
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	frames                 *prometheus.CounterVec
	bytes                  *prometheus.CounterVec
	taskDuration           *prometheus.HistogramVec
	queueDepth             prometheus.Gauge
}

// NewRelayMetrics registers the relay collectors on reg.
func NewRelayMetrics(reg prometheus.Registerer) metrics.RelayMetrics {
	factory := promauto.With(reg)

	return &relayMetrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tcprelay_connections_accepted_total",
			Help: "Total number of accepted client connections",
		}),
		connectionsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcprelay_connections_closed_total",
				Help: "Total number of closed client connections by reason",
			},
			[]string{"reason"}, // "eof", "read_error", "write_error"
		),
		connectionsForceClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tcprelay_connections_force_closed_total",
			Help: "Total number of connections closed by server shutdown",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tcprelay_active_connections",
			Help: "Number of live client connections",
		}),
		frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcprelay_frames_total",
				Help: "Total number of routed frames by outcome",
			},
			[]string{"outcome"}, // "delivered", "malformed", "not_found"
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcprelay_bytes_total",
				Help: "Total socket bytes by direction",
			},
			[]string{"direction"}, // "in", "out"
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tcprelay_task_duration_milliseconds",
				Help: "Worker task execution time in milliseconds",
				Buckets: []float64{
					0.01, // 10us
					0.05,
					0.1,
					0.5,
					1,
					5,
					10,
					50,
					100, // 100ms
				},
			},
			[]string{"kind"}, // "read", "write"
		),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tcprelay_task_queue_depth",
			Help: "Number of tasks waiting for a worker",
		}),
	}
}

func (m *relayMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *relayMetrics) RecordConnectionClosed(reason string) {
	if m == nil {
		return
	}
	m.connectionsClosed.WithLabelValues(reason).Inc()
}

func (m *relayMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *relayMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *relayMetrics) RecordFrame(outcome string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(outcome).Inc()
}

func (m *relayMetrics) RecordBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *relayMetrics) ObserveTask(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(kind).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *relayMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
