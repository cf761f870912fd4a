package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks connectivity to one backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the supervisor liveness probe.
type HealthHandler struct {
	postgres Pinger
	redis    Pinger
	logger   *slog.Logger
}

// NewHealthHandler builds a HealthHandler over the backing services.
// Either pinger may be nil, in which case that dependency is skipped.
func NewHealthHandler(postgres, redis Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{postgres: postgres, redis: redis, logger: logger}
}

// HealthCheck reports per-dependency connectivity. Any failed dependency
// yields a 503 so the supervisor restarts the process.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := map[string]string{}
	healthy := true
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			deps[name] = err.Error()
			healthy = false
			return
		}
		deps[name] = "ok"
	}
	check("postgres", h.postgres)
	check("redis", h.redis)

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
