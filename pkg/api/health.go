package api

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Store   map[string]interface{} `json:"store,omitempty"`
}

// HandleHealth handles GET requests to the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Message: "go-crm is running",
	}
	if h.stats != nil {
		response.Store = h.stats.Stats()
	}
	writeJSON(w, http.StatusOK, response)
}
