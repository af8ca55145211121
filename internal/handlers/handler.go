package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iplweb/dkp/internal/presence"
	"github.com/iplweb/dkp/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db       store.DataStore
	presence presence.Store
}

// NewHandler creates a new Handler with the given stores.
func NewHandler(db store.DataStore, pres presence.Store) *Handler {
	return &Handler{db: db, presence: pres}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
