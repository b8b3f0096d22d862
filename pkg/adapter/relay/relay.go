// Package relay implements the message relay adapter: an edge-triggered
// reactor accepting TCP clients and a fixed worker pool that drains
// sockets, splits newline-delimited frames and routes each frame to the
// client whose observed peer address it names.
//
// Architecture:
//
//	reactor goroutine ──Wait──▶ readiness events
//	       │  listener ready  ─▶ accept until would-block, insert into Table
//	       │  conn readable   ─▶ Pool.Submit(Task{id, TaskRead})
//	       └  conn writable   ─▶ Pool.Submit(Task{id, TaskWrite})
//
//	workers ──▶ handleRead:  drain, frame, route under the Table lock
//	        └─▶ handleWrite: snapshot, write, consume exactly what was sent
//
// The reactor never touches a socket other than the listener. Every
// connection's state lives in the Table and is only touched under its lock.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/marmos91/tcprelay/internal/logger"
	"github.com/marmos91/tcprelay/internal/telemetry"
	"github.com/marmos91/tcprelay/pkg/adapter"
	"github.com/marmos91/tcprelay/pkg/bufpool"
	"github.com/marmos91/tcprelay/pkg/metrics"
)

// Protocol is the adapter's name in logs, metrics and the API.
const Protocol = "relay"

// Adapter is the relay server.
//
// Lifecycle:
//  1. New creates the poller, the connection table and the worker pool.
//  2. Serve binds the listener, starts the workers and runs the reactor
//     until ctx is cancelled, Stop is called or the readiness wait fails.
//  3. Teardown (run by Serve on exit): stop the workers, dropping queued
//     tasks, close every connection, then close the listener and poller.
//
// Thread safety:
// Serve runs once. Stop, Connections and Stats are safe for concurrent use.
type Adapter struct {
	*adapter.BaseAdapter

	config  Config
	metrics metrics.RelayMetrics

	poller  Poller
	table   *Table
	pool    *Pool
	scratch *bufpool.Pool

	listenFD int
	serving  atomic.Bool
	done     chan struct{}

	// acceptRetry asks the reactor to accept again on its next wake-up.
	// acceptDelay and acceptTimer belong to the reactor goroutine.
	acceptRetry atomic.Bool
	acceptDelay time.Duration
	acceptTimer *time.Timer

	framesDelivered atomic.Uint64
	framesMalformed atomic.Uint64
	framesNotFound  atomic.Uint64
}

// New creates a relay adapter. m may be nil to disable metrics.
//
// Errors are startup failures: an invalid config, an unsupported platform
// or a failure to create the readiness poller.
func New(cfg Config, m metrics.RelayMetrics) (*Adapter, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	poller, err := newPoller(cfg.EventBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to create poller: %w", err)
	}

	base := adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:        cfg.BindAddress,
		Port:               cfg.Port,
		ShutdownTimeout:    cfg.ShutdownTimeout,
		MetricsLogInterval: cfg.MetricsLogInterval,
	}, Protocol)
	if m != nil {
		base.Metrics = m
	}

	a := &Adapter{
		BaseAdapter: base,
		config:      cfg,
		metrics:     m,
		poller:      poller,
		table:       NewTable(poller),
		scratch:     bufpool.NewPool(cfg.ReadChunkSize.Int()),
		listenFD:    -1,
		done:        make(chan struct{}),
	}

	a.pool, err = NewPool(cfg.Workers, a.execute)
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	if m != nil {
		a.pool.onDepth = m.SetQueueDepth
	}

	a.OnShutdown(func() {
		if err := a.poller.Wake(); err != nil {
			logger.Warn("Failed to wake reactor", logger.KeyError, err)
		}
	})

	return a, nil
}

// Serve binds the listener and runs the reactor until shutdown.
//
// It returns nil after a graceful shutdown. Listener setup failures and a
// failing readiness wait are returned as errors; per-connection failures
// never are.
func (a *Adapter) Serve(ctx context.Context) error {
	if !a.serving.CompareAndSwap(false, true) {
		if a.ShuttingDown() {
			return nil
		}
		return adapter.ErrAlreadyServing
	}
	defer close(a.done)

	if a.ShuttingDown() {
		a.teardown()
		return nil
	}

	fd, addr, err := listenSocket(a.config.BindAddress, a.config.Port, a.config.Backlog)
	if err != nil {
		a.InitiateShutdown()
		a.teardown()
		return fmt.Errorf("relay listener: %w", err)
	}
	a.listenFD = fd

	if err := a.poller.Add(fd, InterestRead); err != nil {
		a.InitiateShutdown()
		a.teardown()
		return fmt.Errorf("failed to register listener: %w", err)
	}

	a.pool.Start()
	a.MarkListening(addr)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Relay shutdown requested", logger.KeyReason, ctx.Err())
			a.InitiateShutdown()
		case <-a.Shutdown:
		}
	}()
	go a.LogMetrics(ctx)

	err = a.loop()
	if err != nil {
		logger.Error("Reactor stopped", logger.KeyError, err)
		a.InitiateShutdown()
	}
	a.teardown()
	return err
}

// loop is the reactor. It only classifies readiness and hands work to the
// pool; the listener is the one socket it touches.
func (a *Adapter) loop() error {
	events := make([]Event, a.config.EventBatch)

	for {
		n, err := a.poller.Wait(events)
		if a.ShuttingDown() {
			return nil
		}
		if err != nil {
			return fmt.Errorf("readiness wait failed: %w", err)
		}

		for _, ev := range events[:n] {
			switch ev.FD {
			case -1:
				if a.acceptRetry.CompareAndSwap(true, false) {
					a.acceptPending()
				}
			case a.listenFD:
				a.acceptPending()
			default:
				a.dispatch(ev)
			}
		}
	}
}

func (a *Adapter) dispatch(ev Event) {
	id := ConnID(ev.FD)
	if ev.Readable || ev.Hangup {
		a.pool.Submit(Task{Conn: id, Kind: TaskRead})
	}
	if ev.Writable {
		a.pool.Submit(Task{Conn: id, Kind: TaskWrite})
	}
}

// Bounds of the accept retry delay after a failed accept.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptPending accepts until the backlog is empty. Readiness is
// edge-triggered, so stopping early would leave clients waiting until the
// next connection arrives. When accept fails for another reason, such as
// running out of descriptors, the backlog is retried after a growing delay.
func (a *Adapter) acceptPending() {
	_, span := telemetry.StartSpan(context.Background(), telemetry.SpanAccept)
	defer span.End()

	accepted := 0
	for {
		h, ip, port, err := acceptSocket(a.listenFD)
		if errors.Is(err, ErrWouldBlock) {
			a.acceptDelay = 0
			break
		}
		if err != nil {
			delay := a.scheduleAcceptRetry()
			logger.Warn("Accept failed", logger.KeyError, err, "retry_in", delay)
			span.RecordError(err)
			break
		}

		c := &Connection{
			ID:          ConnID(h.FD()),
			SessionID:   uuid.NewString(),
			IP:          ip,
			Port:        port,
			ConnectedAt: time.Now(),
		}
		clientAddr := net.JoinHostPort(ip, strconv.Itoa(port))

		active := a.ConnectionOpened()
		if err := a.table.Insert(c, h); err != nil {
			logger.Warn("Failed to register connection",
				logger.KeyClientAddr, clientAddr, logger.KeyError, err)
			_ = h.Close()
			a.ConnectionClosed("register_error")
			continue
		}
		accepted++

		logger.Info("Client connected",
			logger.KeyConnID, c.ID,
			logger.KeySessionID, c.SessionID,
			logger.KeyClientAddr, clientAddr,
			logger.KeyActive, active)
	}
	span.SetAttributes(telemetry.Accepted(accepted))
}

// scheduleAcceptRetry arms a wake-up of the reactor that accepts again, and
// returns the delay used. The delay doubles on every consecutive failure.
func (a *Adapter) scheduleAcceptRetry() time.Duration {
	a.acceptDelay = min(max(2*a.acceptDelay, minAcceptDelay), maxAcceptDelay)
	a.acceptRetry.Store(true)

	if a.acceptTimer != nil {
		a.acceptTimer.Stop()
	}
	a.acceptTimer = time.AfterFunc(a.acceptDelay, func() {
		if a.ShuttingDown() {
			return
		}
		if err := a.poller.Wake(); err != nil {
			logger.Debug("Failed to wake reactor for accept retry", logger.KeyError, err)
		}
	})
	return a.acceptDelay
}

// teardown releases everything Serve acquired. Queued tasks are dropped,
// tasks already running finish first.
func (a *Adapter) teardown() {
	if a.acceptTimer != nil {
		a.acceptTimer.Stop()
	}
	dropped := a.pool.Stop()

	closed := a.table.CloseAll()
	for i := 0; i < closed; i++ {
		a.ConnectionForceClosed()
	}

	var err error
	if a.listenFD >= 0 {
		if rerr := a.poller.Remove(a.listenFD); rerr != nil {
			logger.Debug("Failed to deregister listener", logger.KeyError, rerr)
		}
		err = multierr.Append(err, closeSocket(a.listenFD))
	}
	err = multierr.Append(err, a.poller.Close())
	if err != nil {
		logger.Warn("Error releasing relay resources", logger.KeyError, err)
	}

	logger.Info("Relay stopped",
		"dropped_tasks", dropped,
		"closed_connections", closed)
}

// Stop initiates shutdown and waits for Serve to release its resources.
// The wait is bounded by ctx and, if set, the configured ShutdownTimeout.
func (a *Adapter) Stop(ctx context.Context) error {
	a.InitiateShutdown()

	if a.serving.CompareAndSwap(false, true) {
		// Serve never ran: nothing but the poller to release.
		err := a.poller.Close()
		close(a.done)
		return err
	}

	if a.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.ShutdownTimeout)
		defer cancel()
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("relay shutdown: %w", ctx.Err())
	}
}

// Connections returns a snapshot of the connection table.
func (a *Adapter) Connections() []adapter.ConnectionInfo {
	return a.table.Snapshot()
}

// Stats returns the adapter's aggregate counters.
func (a *Adapter) Stats() adapter.Stats {
	var addr string
	select {
	case <-a.ListenerReady():
		addr = a.ListenerAddr()
	default:
	}

	return adapter.Stats{
		Protocol:          Protocol,
		ListenAddress:     addr,
		ActiveConnections: a.ConnCount.Load(),
		TotalAccepted:     a.TotalAccepted.Load(),
		FramesDelivered:   a.framesDelivered.Load(),
		FramesMalformed:   a.framesMalformed.Load(),
		FramesNotFound:    a.framesNotFound.Load(),
		QueuedTasks:       a.pool.Pending(),
		Workers:           a.pool.Size(),
	}
}

var (
	_ adapter.Adapter   = (*Adapter)(nil)
	_ adapter.Inspector = (*Adapter)(nil)
)
