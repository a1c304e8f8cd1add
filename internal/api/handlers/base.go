package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/eshaffer321/discount-allocator/internal/api/dto"
	"github.com/eshaffer321/discount-allocator/internal/application/allocation"
	"github.com/eshaffer321/discount-allocator/internal/application/backfill"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/storage"
)

// Processor runs the live allocation for one order.
type Processor interface {
	Process(ctx context.Context, orderID string) (*allocation.ProcessingResult, error)
}

// BatchRunner runs one historical back-fill batch.
type BatchRunner interface {
	RunBatch(ctx context.Context, pageSize int) (*backfill.BatchResult, error)
}

// Base provides shared functionality for all handlers.
type Base struct {
	repo storage.Repository
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository) *Base {
	return &Base{repo: repo}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// ParseIntParam parses an integer query parameter with a default value.
// ok is false when the parameter is present but not an integer.
func ParseIntParam(r *http.Request, name string, defaultVal int) (int, bool) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal, true
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal, false
	}
	return parsed, true
}
