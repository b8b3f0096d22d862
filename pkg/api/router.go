package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/tcprelay/internal/logger"
	"github.com/marmos91/tcprelay/pkg/adapter"
	"github.com/marmos91/tcprelay/pkg/api/handlers"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Middleware: request id, real ip, request logging, panic recovery and a
// request timeout.
//
// Routes:
//   - GET /health                     liveness probe
//   - GET /health/ready               readiness probe (503 until the relay listens)
//   - GET /api/v1/connections         live connection table
//   - GET /api/v1/connections/{id}    one table entry
//   - GET /api/v1/stats               relay counters
//
// inspector may be nil, in which case readiness fails and the relay routes
// answer 503.
func NewRouter(inspector adapter.Inspector) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := handlers.NewHealthHandler(inspector)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	relay := handlers.NewRelayHandler(inspector)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/connections", relay.ListConnections)
		r.Get("/connections/{id}", relay.GetConnection)
		r.Get("/stats", relay.Stats)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request through the internal logger: start at
// DEBUG, completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
