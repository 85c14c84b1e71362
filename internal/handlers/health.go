package handlers

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency; a non-nil error marks the service not ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	checks []ReadinessCheck
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithReadinessChecks registers dependency probes evaluated by /readyz.
func WithReadinessChecks(checks ...ReadinessCheck) HealthOption {
	return func(h *HealthHandlers) {
		h.checks = append(h.checks, checks...)
	}
}

// NewHealthHandlers constructs the health endpoint handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports dependency readiness. Any failing check degrades the
// response to 503 with the failing dependency named.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		if check.Check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			healthy = false
			results[check.Name] = err.Error()
			continue
		}
		results[check.Name] = "ok"
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSONResponse(w, status, map[string]any{
		"status": state,
		"checks": results,
	})
}
