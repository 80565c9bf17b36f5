package api

import (
	"context"
	"net/http"

	"github.com/kubesage/kubesage/internal/log"
)

// HealthChecker reports whether the vector store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// HealthHandler handles the liveness and readiness probes.
type HealthHandler struct {
	store  HealthChecker
	logger log.Logger
}

// NewHealthHandler creates a health handler. store backs the readiness
// probe.
func NewHealthHandler(store HealthChecker, logger log.Logger) *HealthHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &HealthHandler{store: store, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 whenever the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 once the vector store answers its health check.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "vector store not configured", http.StatusServiceUnavailable)
		return
	}
	if !h.store.HealthCheck(r.Context()) {
		h.logger.Error("readiness check failed")
		http.Error(w, "vector store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
