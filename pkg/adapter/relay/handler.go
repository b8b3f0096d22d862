package relay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/marmos91/tcprelay/internal/logger"
	"github.com/marmos91/tcprelay/internal/telemetry"
	"github.com/marmos91/tcprelay/pkg/metrics"
)

// Disconnect reasons recorded in logs and metrics.
const (
	reasonEOF        = "eof"
	reasonReadError  = "read_error"
	reasonWriteError = "write_error"
)

// execute runs one task on a worker goroutine.
func (a *Adapter) execute(t Task) {
	start := time.Now()

	spanName := telemetry.SpanReadTask
	if t.Kind == TaskWrite {
		spanName = telemetry.SpanWriteTask
	}
	ctx, span := telemetry.StartTaskSpan(context.Background(), spanName, int(t.Conn))
	defer span.End()

	lc := logger.NewLogContext(int(t.Conn)).
		WithTask(t.Kind.String()).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	if sessionID, addr, ok := a.table.Peer(t.Conn); ok {
		lc = lc.WithPeer(sessionID, addr)
		span.SetAttributes(telemetry.SessionID(sessionID), telemetry.ClientAddr(addr))
	}
	ctx = logger.WithContext(ctx, lc)

	switch t.Kind {
	case TaskRead:
		a.handleRead(ctx, t.Conn)
	case TaskWrite:
		a.handleWrite(ctx, t.Conn)
	}

	if a.metrics != nil {
		a.metrics.ObserveTask(t.Kind.String(), time.Since(start))
	}
}

// handleRead drains the connection, routes every complete frame and tears
// the connection down if the peer closed or the read failed.
//
// Only one read task per connection runs at a time. A notification that
// arrives while this one runs makes it drain again before returning.
func (a *Adapter) handleRead(ctx context.Context, id ConnID) {
	c := a.table.BeginRead(id)
	if c == nil {
		return
	}

	buf := a.scratch.Get()
	defer a.scratch.Put(buf)

	for {
		reason, gone := a.drain(ctx, c, buf)
		if gone {
			return
		}
		if reason != "" {
			a.disconnect(ctx, c, reason)
			return
		}
		if !a.table.FinishRead(c) {
			return
		}
	}
}

// drain reads c until the socket would block, routing frames after every
// chunk. It returns the disconnect reason, if any, and whether c left the
// table meanwhile. A read error on an entry that is no longer live comes
// from the table having closed the handle and is reported as gone.
func (a *Adapter) drain(ctx context.Context, c *Connection, buf []byte) (string, bool) {
	var (
		total int
		res   routeResult
	)
	defer func() {
		telemetry.SetAttributes(ctx, telemetry.BytesRead(total), telemetry.Frames(res.total()))
		a.recordFrames(res)
		if total > 0 {
			logger.DebugCtx(ctx, "Drained connection",
				logger.KeyBytesRead, total,
				logger.KeyFrames, res.total(),
				"malformed", res.malformed,
				"not_found", res.notFound)
		}
	}()

	for {
		n, err := c.handle.Read(buf)
		if n > 0 {
			total += n
			if a.metrics != nil {
				a.metrics.RecordBytes(metrics.DirectionIn, n)
			}

			gone := false
			a.table.Do(func(v *View) {
				if !v.Live(c) {
					gone = true
					return
				}
				v.AppendInbound(c, buf[:n])
				r := routeAll(v, c)
				res.delivered += r.delivered
				res.malformed += r.malformed
				res.notFound += r.notFound
			})
			if gone {
				return "", true
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrWouldBlock):
			return "", false
		case !a.table.Live(c):
			return "", true
		case errors.Is(err, io.EOF):
			return reasonEOF, false
		default:
			logger.WarnCtx(ctx, "Read failed", logger.KeyError, err)
			telemetry.RecordError(ctx, err)
			return reasonReadError, false
		}
	}
}

// handleWrite flushes the outbound buffer. Only one write task per
// connection runs at a time; see handleRead.
func (a *Adapter) handleWrite(ctx context.Context, id ConnID) {
	c := a.table.BeginWrite(id)
	if c == nil {
		return
	}

	for {
		if closed := a.flush(ctx, c); closed {
			return
		}
		if !a.table.FinishWrite(c) {
			return
		}
	}
}

// flush sends snapshots of c's outbound buffer until it is empty, the
// socket would block or a write fails. After each attempt exactly the sent
// bytes are consumed from the live buffer, so data queued by a concurrent
// read task is kept. It reports whether the connection is gone.
func (a *Adapter) flush(ctx context.Context, c *Connection) bool {
	total := 0
	defer func() {
		telemetry.SetAttributes(ctx, telemetry.BytesWritten(total))
	}()

	for {
		snapshot, ok := a.table.SnapshotOutbound(c)
		if !ok {
			return true
		}
		if len(snapshot) == 0 {
			a.table.ConsumeOutbound(c, 0)
			return false
		}

		sent, err := writeFull(c.handle, snapshot)
		total += sent
		if sent > 0 && a.metrics != nil {
			a.metrics.RecordBytes(metrics.DirectionOut, sent)
		}

		blocked := errors.Is(err, ErrWouldBlock)
		if err != nil && !blocked {
			if !a.table.Live(c) {
				return true
			}
			logger.WarnCtx(ctx, "Write failed", logger.KeyBytesWritten, sent, logger.KeyError, err)
			telemetry.RecordError(ctx, err)
			a.disconnect(ctx, c, reasonWriteError)
			return true
		}

		remaining, ok := a.table.ConsumeOutbound(c, sent)
		if !ok {
			return true
		}
		logger.DebugCtx(ctx, "Flushed outbound",
			logger.KeyBytesWritten, sent,
			logger.KeyPending, remaining)

		if blocked || remaining == 0 {
			return false
		}
	}
}

// writeFull writes p until it is fully sent, the handle would block or a
// write fails, and returns how many bytes went out.
func writeFull(h Handle, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := h.Write(p[sent:])
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, io.ErrShortWrite
		}
	}
	return sent, nil
}

// disconnect removes c from the table and records why. It does nothing if
// c was already replaced or removed.
func (a *Adapter) disconnect(ctx context.Context, c *Connection, reason string) {
	if !a.table.Remove(c) {
		return
	}
	active := a.ConnectionClosed(reason)
	logger.InfoCtx(ctx, "Client disconnected",
		logger.KeyReason, reason,
		logger.KeyActive, active)
}

func (a *Adapter) recordFrames(res routeResult) {
	a.framesDelivered.Add(uint64(res.delivered))
	a.framesMalformed.Add(uint64(res.malformed))
	a.framesNotFound.Add(uint64(res.notFound))

	if a.metrics == nil {
		return
	}
	for i := 0; i < res.delivered; i++ {
		a.metrics.RecordFrame(metrics.OutcomeDelivered)
	}
	for i := 0; i < res.malformed; i++ {
		a.metrics.RecordFrame(metrics.OutcomeMalformed)
	}
	for i := 0; i < res.notFound; i++ {
		a.metrics.RecordFrame(metrics.OutcomeNotFound)
	}
}
