package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tcprelay/pkg/adapter"
)

// RelayHandler serves the read-only view of the relay.
type RelayHandler struct {
	inspector adapter.Inspector
}

// NewRelayHandler creates a relay handler. inspector may be nil.
func NewRelayHandler(inspector adapter.Inspector) *RelayHandler {
	return &RelayHandler{inspector: inspector}
}

// ListConnections handles GET /api/v1/connections.
//
// The optional ip query parameter keeps only connections whose observed
// peer IP matches exactly.
func (h *RelayHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		ServiceUnavailable(w, "relay not initialized")
		return
	}

	conns := h.inspector.Connections()
	if ip := r.URL.Query().Get("ip"); ip != "" {
		filtered := conns[:0]
		for _, c := range conns {
			if c.RemoteIP == ip {
				filtered = append(filtered, c)
			}
		}
		conns = filtered
	}
	if conns == nil {
		conns = []adapter.ConnectionInfo{}
	}

	writeJSON(w, http.StatusOK, okResponse(conns))
}

// GetConnection handles GET /api/v1/connections/{id}.
func (h *RelayHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		ServiceUnavailable(w, "relay not initialized")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "connection id must be an integer")
		return
	}

	for _, c := range h.inspector.Connections() {
		if c.ID == id {
			writeJSON(w, http.StatusOK, okResponse(c))
			return
		}
	}
	NotFound(w, "connection not found")
}

// Stats handles GET /api/v1/stats.
func (h *RelayHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		ServiceUnavailable(w, "relay not initialized")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(h.inspector.Stats()))
}
