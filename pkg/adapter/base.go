package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/tcprelay/internal/logger"
)

// BaseConfig holds configuration common to all adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all IPv4 interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// ShutdownTimeout bounds how long Stop waits for the event loop and
	// workers to exit.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the interval at which to log connection counts.
	// 0 disables periodic logging.
	MetricsLogInterval time.Duration
}

// MetricsRecorder records connection lifecycle metrics. A nil recorder
// disables collection.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed(reason string)
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// BaseAdapter provides the lifecycle bookkeeping shared by adapters:
// one-shot shutdown signalling, listener readiness, connection counting
// and periodic metrics logging.
//
// Thread safety:
// All exported methods are safe for concurrent use.
type BaseAdapter struct {
	// Config holds the shared configuration.
	Config BaseConfig

	// Metrics is an optional connection lifecycle recorder.
	Metrics MetricsRecorder

	// Shutdown is closed once shutdown has been initiated.
	Shutdown chan struct{}

	// ConnCount tracks the current number of live connections.
	ConnCount atomic.Int32

	// TotalAccepted counts connections accepted since start.
	TotalAccepted atomic.Uint64

	protocolName string

	shutdownOnce sync.Once
	onShutdown   func()

	listenerReady chan struct{}
	readyOnce     sync.Once
	listenerMu    sync.RWMutex
	listenerAddr  string
}

// NewBaseAdapter creates a BaseAdapter in the stopped state.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	return &BaseAdapter{
		Config:        config,
		protocolName:  protocol,
		Shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// OnShutdown registers fn to run once when shutdown is initiated. It is used
// to wake an event loop blocked in its readiness wait.
func (b *BaseAdapter) OnShutdown(fn func()) {
	b.onShutdown = fn
}

// InitiateShutdown closes the Shutdown channel and runs the shutdown hook.
// Safe to call multiple times.
func (b *BaseAdapter) InitiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")
		close(b.Shutdown)
		if b.onShutdown != nil {
			b.onShutdown()
		}
	})
}

// ShuttingDown reports whether shutdown has been initiated.
func (b *BaseAdapter) ShuttingDown() bool {
	select {
	case <-b.Shutdown:
		return true
	default:
		return false
	}
}

// MarkListening records the bound address and releases ListenerReady waiters.
func (b *BaseAdapter) MarkListening(addr string) {
	b.listenerMu.Lock()
	b.listenerAddr = addr
	b.listenerMu.Unlock()

	b.readyOnce.Do(func() { close(b.listenerReady) })
	logger.Info(b.protocolName+" server listening", "address", addr)
}

// ListenerReady is closed once the listener accepts connections.
func (b *BaseAdapter) ListenerReady() <-chan struct{} {
	return b.listenerReady
}

// ListenerAddr blocks until the listener is ready or shutdown starts, then
// returns the bound address ("" if the adapter never listened).
func (b *BaseAdapter) ListenerAddr() string {
	select {
	case <-b.listenerReady:
	case <-b.Shutdown:
	}

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	return b.listenerAddr
}

// ConnectionOpened updates counters and metrics for an accepted connection
// and returns the new live count.
func (b *BaseAdapter) ConnectionOpened() int32 {
	b.TotalAccepted.Add(1)
	active := b.ConnCount.Add(1)
	if b.Metrics != nil {
		b.Metrics.RecordConnectionAccepted()
		b.Metrics.SetActiveConnections(active)
	}
	return active
}

// ConnectionClosed updates counters and metrics for a torn-down connection
// and returns the new live count.
func (b *BaseAdapter) ConnectionClosed(reason string) int32 {
	active := b.ConnCount.Add(-1)
	if b.Metrics != nil {
		b.Metrics.RecordConnectionClosed(reason)
		b.Metrics.SetActiveConnections(active)
	}
	return active
}

// ConnectionForceClosed records a connection closed by shutdown.
func (b *BaseAdapter) ConnectionForceClosed() {
	active := b.ConnCount.Add(-1)
	if b.Metrics != nil {
		b.Metrics.RecordConnectionForceClosed()
		b.Metrics.SetActiveConnections(active)
	}
}

// LogMetrics periodically logs the live connection count until ctx is done
// or shutdown starts.
func (b *BaseAdapter) LogMetrics(ctx context.Context) {
	if b.Config.MetricsLogInterval <= 0 {
		return
	}

	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics",
				"active_connections", b.ConnCount.Load(),
				"total_accepted", b.TotalAccepted.Load())
		}
	}
}

// Port returns the configured TCP port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the human-readable protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
