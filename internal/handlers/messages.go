package handlers

import (
	"net/http"
	"strconv"

	"github.com/iplweb/dkp/internal/models"
)

// MessageListResponse represents the message history response.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

// ListMessages handles the recent message history for a ward, newest
// first, including acknowledgment state. Reporting collaborators read
// this; the live path is the websocket.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	wardID, err := strconv.ParseInt(r.URL.Query().Get("ward_id"), 10, 64)
	if err != nil || wardID <= 0 {
		h.Error(w, http.StatusBadRequest, "ward_id is required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	messages, err := h.db.ListMessages(r.Context(), wardID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}
