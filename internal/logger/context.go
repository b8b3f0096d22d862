package logger

import (
	"context"
	"time"
)

type contextKey struct{}

// LogContext carries the fields stamped on every context-aware log line.
type LogContext struct {
	TraceID    string
	SpanID     string
	Task       string // read, write
	ConnID     int    // -1 when not bound to a connection
	SessionID  string
	ClientAddr string
	StartTime  time.Time
}

// NewLogContext returns a LogContext for work on connection connID.
func NewLogContext(connID int) *LogContext {
	return &LogContext{
		ConnID:    connID,
		StartTime: time.Now(),
	}
}

// WithContext stores lc in ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// Clone returns a copy of lc.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithTask returns a copy with the task kind set.
func (lc *LogContext) WithTask(task string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Task = task
	}
	return c
}

// WithPeer returns a copy with the session id and client address set.
func (lc *LogContext) WithPeer(sessionID, clientAddr string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.SessionID = sessionID
		c.ClientAddr = clientAddr
	}
	return c
}

// WithTrace returns a copy with trace and span ids set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the milliseconds elapsed since StartTime.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}
