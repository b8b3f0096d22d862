package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tcprelay/pkg/adapter"
)

type fakeInspector struct {
	conns []adapter.ConnectionInfo
	stats adapter.Stats
	ready chan struct{}
}

func newFakeInspector(ready bool) *fakeInspector {
	f := &fakeInspector{
		ready: make(chan struct{}),
		stats: adapter.Stats{Protocol: "relay", ListenAddress: "0.0.0.0:8888", ActiveConnections: 2, Workers: 4},
		conns: []adapter.ConnectionInfo{
			{ID: 7, SessionID: "a", RemoteIP: "127.0.0.1", RemotePort: 9000, ConnectedAt: time.Unix(0, 0).UTC()},
			{ID: 9, SessionID: "b", RemoteIP: "10.0.0.3", RemotePort: 9001, Outbound: 5, WriteArmed: true},
		},
	}
	if ready {
		close(f.ready)
	}
	return f
}

func (f *fakeInspector) Connections() []adapter.ConnectionInfo {
	out := make([]adapter.ConnectionInfo, len(f.conns))
	copy(out, f.conns)
	return out
}

func (f *fakeInspector) Stats() adapter.Stats            { return f.stats }
func (f *fakeInspector) ListenerReady() <-chan struct{} { return f.ready }

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).Liveness(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp Response
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]any{"service": "relayd"}, resp.Data)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name      string
		inspector adapter.Inspector
		code      int
		status    string
		errMsg    string
	}{
		{"no relay", nil, http.StatusServiceUnavailable, "unhealthy", "relay not initialized"},
		{"not listening", newFakeInspector(false), http.StatusServiceUnavailable, "unhealthy", "relay listener not ready"},
		{"listening", newFakeInspector(true), http.StatusOK, "healthy", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.inspector).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, w.Code)
			var resp Response
			decode(t, w, &resp)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.errMsg, resp.Error)
		})
	}
}

func TestReadinessReportsListenAddress(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(newFakeInspector(true)).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	decode(t, w, &resp)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "0.0.0.0:8888", data["listen_address"])
	assert.Equal(t, float64(2), data["active_connections"])
}

func TestListConnections(t *testing.T) {
	h := NewRelayHandler(newFakeInspector(true))

	w := httptest.NewRecorder()
	h.ListConnections(w, httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string                   `json:"status"`
		Data   []adapter.ConnectionInfo `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, 9000, resp.Data[0].RemotePort)
	assert.True(t, resp.Data[1].WriteArmed)

	w = httptest.NewRecorder()
	h.ListConnections(w, httptest.NewRequest(http.MethodGet, "/api/v1/connections?ip=10.0.0.3", nil))
	decode(t, w, &resp)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 9, resp.Data[0].ID)

	w = httptest.NewRecorder()
	h.ListConnections(w, httptest.NewRequest(http.MethodGet, "/api/v1/connections?ip=192.0.2.1", nil))
	assert.JSONEq(t, `[]`, mustField(t, w.Body.Bytes(), "data"))
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return string(m[field])
}

func TestGetConnection(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/connections/{id}", NewRelayHandler(newFakeInspector(true)).GetConnection)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/connections/7", http.StatusOK},
		{"/api/v1/connections/8", http.StatusNotFound},
		{"/api/v1/connections/x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestStats(t *testing.T) {
	w := httptest.NewRecorder()
	NewRelayHandler(newFakeInspector(true)).Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data adapter.Stats `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "relay", resp.Data.Protocol)
	assert.Equal(t, 4, resp.Data.Workers)
}

func TestRelayHandlerWithoutInspector(t *testing.T) {
	h := NewRelayHandler(nil)
	for _, fn := range []http.HandlerFunc{h.ListConnections, h.GetConnection, h.Stats} {
		w := httptest.NewRecorder()
		fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var p Problem
		decode(t, w, &p)
		assert.Equal(t, "relay not initialized", p.Detail)
	}
}
