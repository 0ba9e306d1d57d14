package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the state of the service dependencies
type HealthHandler struct {
	required map[string]HealthCheck
	optional map[string]HealthCheck
}

// NewHealthHandler creates a health handler. A failing required check makes
// the service unhealthy; a failing optional check only degrades it.
func NewHealthHandler(required, optional map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{required: required, optional: optional}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(h.required)+len(h.optional))

	for name, check := range h.required {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	for name, check := range h.optional {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			if code == http.StatusOK {
				status = "degraded"
			}
			continue
		}
		checks[name] = "ok"
	}

	respondWithJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
