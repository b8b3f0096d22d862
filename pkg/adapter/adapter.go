// Package adapter defines the lifecycle contract shared by network front-ends
// of the relay server and the plumbing they have in common.
package adapter

import (
	"context"
	"time"
)

// Adapter is a network front-end that can be started and stopped by the
// server lifecycle.
//
// Lifecycle:
//  1. Creation: the concrete adapter is built from its config.
//  2. Serve: blocks, accepting and serving connections until the context is
//     cancelled, Stop is called, or a fatal error occurs.
//  3. Stop: initiates shutdown and waits for it to finish or for ctx to expire.
//
// Thread safety:
// Serve is called exactly once. Stop may be called concurrently with Serve
// and more than once.
type Adapter interface {
	// Serve starts the adapter and blocks until it shuts down.
	//
	// Returns nil on graceful shutdown and an error for startup failures
	// (socket, bind, listen, poller creation) or a fatal runtime failure of
	// the event loop.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits until Serve has released
	// every resource or ctx is done.
	Stop(ctx context.Context) error

	// Protocol returns a short human-readable name used in logs and metrics.
	Protocol() string

	// Port returns the configured listen port.
	Port() int
}

// Inspector exposes a read-only view of an adapter's live connections.
type Inspector interface {
	// Connections returns a point-in-time copy of every live connection.
	Connections() []ConnectionInfo

	// Stats returns aggregate counters for the adapter.
	Stats() Stats

	// ListenerReady is closed once the adapter accepts connections.
	ListenerReady() <-chan struct{}
}

// ConnectionInfo describes one connection table entry.
type ConnectionInfo struct {
	ID          int       `json:"id" yaml:"id"`
	SessionID   string    `json:"session_id" yaml:"session_id"`
	RemoteIP    string    `json:"remote_ip" yaml:"remote_ip"`
	RemotePort  int       `json:"remote_port" yaml:"remote_port"`
	Inbound     int       `json:"inbound_bytes" yaml:"inbound_bytes"`
	Outbound    int       `json:"outbound_bytes" yaml:"outbound_bytes"`
	WriteArmed  bool      `json:"write_armed" yaml:"write_armed"`
	ConnectedAt time.Time `json:"connected_at" yaml:"connected_at"`
}

// Stats aggregates adapter counters since start.
type Stats struct {
	Protocol          string `json:"protocol" yaml:"protocol"`
	ListenAddress     string `json:"listen_address" yaml:"listen_address"`
	ActiveConnections int32  `json:"active_connections" yaml:"active_connections"`
	TotalAccepted     uint64 `json:"total_accepted" yaml:"total_accepted"`
	FramesDelivered   uint64 `json:"frames_delivered" yaml:"frames_delivered"`
	FramesMalformed   uint64 `json:"frames_malformed" yaml:"frames_malformed"`
	FramesNotFound    uint64 `json:"frames_not_found" yaml:"frames_not_found"`
	QueuedTasks       int    `json:"queued_tasks" yaml:"queued_tasks"`
	Workers           int    `json:"workers" yaml:"workers"`
}
