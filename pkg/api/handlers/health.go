package handlers

import (
	"net/http"

	"github.com/marmos91/tcprelay/pkg/adapter"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	inspector adapter.Inspector
}

// NewHealthHandler creates a health handler. inspector may be nil, in which
// case the readiness probe always fails.
func NewHealthHandler(inspector adapter.Inspector) *HealthHandler {
	return &HealthHandler{inspector: inspector}
}

// Liveness handles GET /health. It succeeds whenever the HTTP server answers.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "relayd",
	}))
}

// Readiness handles GET /health/ready. It returns 503 until the relay
// listener accepts connections.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("relay not initialized"))
		return
	}

	select {
	case <-h.inspector.ListenerReady():
	default:
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("relay listener not ready"))
		return
	}

	stats := h.inspector.Stats()
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"listen_address":     stats.ListenAddress,
		"active_connections": stats.ActiveConnections,
		"workers":            stats.Workers,
	}))
}
