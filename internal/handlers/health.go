package handlers

import (
	"net/http"
)

// HealthCheck serves GET /health, reporting the storage and Redis backends.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	components := map[string]string{}

	if err := h.store.Health(); err != nil {
		components["storage"] = "unhealthy"
		status = http.StatusServiceUnavailable
	} else {
		components["storage"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Health(); err != nil {
			components["redis"] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			components["redis"] = "healthy"
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	h.respondJSON(w, status, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}
