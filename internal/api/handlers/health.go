package handlers

import (
	"net/http"

	"github.com/eshaffer321/discount-allocator/internal/api/dto"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/storage"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
}

// NewHealthHandler creates a new health handler. It reports unavailable
// when the database cannot be reached.
func NewHealthHandler(repo storage.Repository) *HealthHandler {
	return &HealthHandler{Base: NewBase(repo)}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()

	if h.repo != nil {
		if err := h.repo.Ping(); err != nil {
			response.Status = "unavailable"
			h.WriteJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	h.WriteJSON(w, http.StatusOK, response)
}
