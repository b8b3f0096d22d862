package logger

import "log/slog"

// Standard field keys. Use them consistently so log lines can be queried by
// connection across the accept, read and write paths.
const (
	// ========================================================================
	// Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Connection
	// ========================================================================
	KeyConnID     = "conn_id"     // descriptor-backed connection id
	KeySessionID  = "session_id"  // UUID assigned at accept
	KeyClientAddr = "client_addr" // observed peer ip:port
	KeyActive     = "active"      // live connection count
	KeyReason     = "reason"      // eof, read_error, write_error

	// ========================================================================
	// Relay
	// ========================================================================
	KeyTask         = "task"   // read, write
	KeyTarget       = "target" // destination ip:port of a frame
	KeyFrames       = "frames"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyPending      = "pending" // outbound bytes left after a flush

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyProtocol   = "protocol"
	KeyAddress    = "address"
)

func ConnID(id int) slog.Attr {
	return slog.Int(KeyConnID, id)
}

func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

func Task(kind string) slog.Attr {
	return slog.String(KeyTask, kind)
}

func Target(addr string) slog.Attr {
	return slog.String(KeyTarget, addr)
}

func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns the error attribute, or an empty attribute for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
