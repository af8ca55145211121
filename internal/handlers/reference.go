package handlers

import (
	"net/http"

	"github.com/iplweb/dkp/internal/models"
)

// WardListResponse represents the wards list response.
type WardListResponse struct {
	Wards []models.Ward `json:"wards"`
}

// ListWards handles listing wards for client UI setup.
func (h *Handler) ListWards(w http.ResponseWriter, r *http.Request) {
	wards, err := h.db.ListWards(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if wards == nil {
		wards = []models.Ward{}
	}
	h.JSON(w, http.StatusOK, WardListResponse{Wards: wards})
}

// OperatingRoomListResponse represents the operating rooms list response.
type OperatingRoomListResponse struct {
	OperatingRooms []models.OperatingRoom `json:"operating_rooms"`
}

// ListOperatingRooms handles listing operating rooms.
func (h *Handler) ListOperatingRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.db.ListOperatingRooms(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if rooms == nil {
		rooms = []models.OperatingRoom{}
	}
	h.JSON(w, http.StatusOK, OperatingRoomListResponse{OperatingRooms: rooms})
}

// MessageTypeListResponse represents the message types list response.
type MessageTypeListResponse struct {
	MessageTypes []models.MessageType `json:"message_types"`
}

// ListMessageTypes handles listing the message types a role can send.
// An optional ?role= query filters by source role.
func (h *Handler) ListMessageTypes(w http.ResponseWriter, r *http.Request) {
	var sourceRole models.Role
	if name := r.URL.Query().Get("role"); name != "" {
		role, err := models.ParseRole(name)
		if err != nil {
			h.Error(w, http.StatusNotFound, "unknown role")
			return
		}
		sourceRole = role
	}

	types, err := h.db.ListMessageTypes(r.Context(), sourceRole)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if types == nil {
		types = []models.MessageType{}
	}
	h.JSON(w, http.StatusOK, MessageTypeListResponse{MessageTypes: types})
}
