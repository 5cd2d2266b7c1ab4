package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker reports readiness of a service dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checkers map[string]HealthChecker
	logger   *slog.Logger
}

// NewHealthHandler creates a health handler over the named dependency checkers.
func NewHealthHandler(checkers map[string]HealthChecker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checkers: checkers, logger: logger}
}

// HealthResponse is the JSON body of a health probe.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. Returns 200 when every dependency check
// passes and 503 otherwise, with per-dependency status detail.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	if len(h.checkers) > 0 {
		resp.Checks = make(map[string]string, len(h.checkers))
	}

	healthy := true
	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unhealthy"
			healthy = false
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, r.Context(), status, resp)
}
