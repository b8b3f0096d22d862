package apiclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tcprelay/pkg/adapter"
	"github.com/marmos91/tcprelay/pkg/api"
)

type stubInspector struct {
	ready chan struct{}
}

func newStub(ready bool) *stubInspector {
	s := &stubInspector{ready: make(chan struct{})}
	if ready {
		close(s.ready)
	}
	return s
}

func (s *stubInspector) Connections() []adapter.ConnectionInfo {
	return []adapter.ConnectionInfo{
		{ID: 5, SessionID: "s5", RemoteIP: "127.0.0.1", RemotePort: 40000},
		{ID: 6, SessionID: "s6", RemoteIP: "10.1.1.1", RemotePort: 40001, Outbound: 12},
	}
}

func (s *stubInspector) Stats() adapter.Stats {
	return adapter.Stats{Protocol: "relay", ListenAddress: "0.0.0.0:8888", ActiveConnections: 2, FramesDelivered: 10, Workers: 4}
}

func (s *stubInspector) ListenerReady() <-chan struct{} { return s.ready }

func newTestClient(t *testing.T, inspector adapter.Inspector) *Client {
	t.Helper()
	srv := httptest.NewServer(api.NewRouter(inspector))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestHealth(t *testing.T) {
	h, err := newTestClient(t, nil).Health()
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "relayd", h.Service)
}

func TestReady(t *testing.T) {
	r, err := newTestClient(t, newStub(true)).Ready()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8888", r.ListenAddress)
	assert.Equal(t, int32(2), r.ActiveConnections)
	assert.Equal(t, 4, r.Workers)
}

func TestReady_NotListening(t *testing.T) {
	_, err := newTestClient(t, newStub(false)).Ready()
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnavailable())
	assert.Equal(t, "relay listener not ready", apiErr.Message)
}

func TestConnections(t *testing.T) {
	c := newTestClient(t, newStub(true))

	conns, err := c.Connections("")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, 40000, conns[0].RemotePort)

	conns, err = c.Connections("10.1.1.1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, 12, conns[0].Outbound)

	conns, err = c.Connections("192.0.2.9")
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestConnection(t *testing.T) {
	c := newTestClient(t, newStub(true))

	conn, err := c.Connection(6)
	require.NoError(t, err)
	assert.Equal(t, "s6", conn.SessionID)

	_, err = c.Connection(99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "connection not found", err.(*APIError).Message)
}

func TestStats(t *testing.T) {
	s, err := newTestClient(t, newStub(true)).Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), s.FramesDelivered)
	assert.Equal(t, "relay", s.Protocol)
}

func TestRelayUnavailable(t *testing.T) {
	_, err := newTestClient(t, nil).Stats()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnavailable())
	assert.Equal(t, "relay not initialized", apiErr.Message)
}

func TestParseError_RawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Stats()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "boom\n", apiErr.Message)
	assert.Equal(t, "502: boom\n", apiErr.Error())
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).WithTimeout(time.Second).Health()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
