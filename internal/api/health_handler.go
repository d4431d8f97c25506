package api

import (
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/task"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	cache task.Availability
}

// NewHealthHandler creates a HealthHandler reporting the cache state.
func NewHealthHandler(cache task.Availability) *HealthHandler {
	return &HealthHandler{cache: cache}
}

// ServeHTTP reports liveness and whether the cache is reachable. The
// service stays healthy while the cache is down.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := "down"
	if h.cache != nil && h.cache.Available() {
		state = "up"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Cache: state})
}
