package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on relay spans.
const (
	AttrConnID       = "relay.conn_id"
	AttrSessionID    = "relay.session_id"
	AttrClientAddr   = "client.address"
	AttrTask         = "relay.task"
	AttrBytesRead    = "relay.bytes_read"
	AttrBytesWritten = "relay.bytes_written"
	AttrFrames       = "relay.frames"
	AttrTarget       = "relay.target"
	AttrAccepted     = "relay.accepted"
)

// Span names.
const (
	SpanReadTask  = "relay.read"
	SpanWriteTask = "relay.write"
	SpanAccept    = "relay.accept"
)

func ConnID(id int) attribute.KeyValue {
	return attribute.Int(AttrConnID, id)
}

func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

func BytesRead(n int) attribute.KeyValue {
	return attribute.Int(AttrBytesRead, n)
}

func BytesWritten(n int) attribute.KeyValue {
	return attribute.Int(AttrBytesWritten, n)
}

func Frames(n int) attribute.KeyValue {
	return attribute.Int(AttrFrames, n)
}

func Target(addr string) attribute.KeyValue {
	return attribute.String(AttrTarget, addr)
}

func Accepted(n int) attribute.KeyValue {
	return attribute.Int(AttrAccepted, n)
}

// StartTaskSpan starts the span of one worker task.
func StartTaskSpan(ctx context.Context, name string, connID int) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(ConnID(connID), attribute.String(AttrTask, name)),
	)
}
