package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/AdriBarda/url-shortener/internal/http/response"
)

// Pinger is satisfied by both pgxpool.Pool and a go-redis client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		response.Error(w, r, http.StatusServiceUnavailable, "UNHEALTHY", "a dependency is unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, status)
}
