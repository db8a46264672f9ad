package handlers

import (
	"net/http"
	"time"
)

// ReadinessCheck reports whether the service can serve traffic.
type ReadinessCheck func() bool

// HealthHandlers exposes liveness and readiness endpoints.
type HealthHandlers struct {
	started time.Time
	ready   ReadinessCheck
}

// NewHealthHandlers constructs health handlers; a nil check is always ready.
func NewHealthHandlers(ready ReadinessCheck) *HealthHandlers {
	return &HealthHandlers{
		started: time.Now().UTC(),
		ready:   ready,
	}
}

// Healthz responds with a simple status payload for liveness monitoring.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports readiness; the catalog cache must be warm before traffic flows.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}
