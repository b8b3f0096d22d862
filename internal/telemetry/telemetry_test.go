package telemetry

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "relayd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
	assert.NotNil(t, Tracer())
}

func TestSpanHelpersAreNoOpWhenDisabled(t *testing.T) {
	_, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)

	ctx, span := StartTaskSpan(context.Background(), SpanReadTask, 7)
	require.NotNil(t, span)
	defer span.End()

	assert.NotPanics(t, func() {
		AddEvent(ctx, "frame.routed", Target("127.0.0.1:9000"))
		SetAttributes(ctx, BytesRead(12), Frames(2))
		RecordError(ctx, errors.New("boom"))
		RecordError(ctx, nil)
	})

	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		key  string
		got  any
		want any
	}{
		{"conn id", AttrConnID, ConnID(5).Value.AsInt64(), int64(5)},
		{"session", AttrSessionID, SessionID("abc").Value.AsString(), "abc"},
		{"client", AttrClientAddr, ClientAddr("1.2.3.4:5").Value.AsString(), "1.2.3.4:5"},
		{"bytes read", AttrBytesRead, BytesRead(3).Value.AsInt64(), int64(3)},
		{"bytes written", AttrBytesWritten, BytesWritten(4).Value.AsInt64(), int64(4)},
		{"accepted", AttrAccepted, Accepted(2).Value.AsInt64(), int64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	assert.Equal(t, AttrConnID, string(ConnID(1).Key))
}

func TestParseProfileType(t *testing.T) {
	pt, err := ParseProfileType("cpu")
	require.NoError(t, err)
	assert.Equal(t, pyroscope.ProfileCPU, pt)

	pt, err = ParseProfileType("inuse_space")
	require.NoError(t, err)
	assert.Equal(t, pyroscope.ProfileInuseSpace, pt)

	_, err = ParseProfileType("bogus")
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestProfileTypeNames(t *testing.T) {
	names := ProfileTypeNames()
	assert.Len(t, names, 10)
	assert.True(t, sort.StringsAreSorted(names))
	for _, name := range names {
		_, err := ParseProfileType(name)
		assert.NoError(t, err, name)
	}
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{
		Enabled:      true,
		ServiceName:  "relayd",
		Endpoint:     "http://127.0.0.1:1",
		ProfileTypes: []string{"cpu", "heap"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"heap"`)
	assert.False(t, IsProfilingEnabled())
}
