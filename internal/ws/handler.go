package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iplweb/dkp/internal/comms"
	"github.com/iplweb/dkp/internal/models"
)

// Handler accepts websocket connections and binds them to sessions. Two
// connection classes exist: the monitor route, fixed to the anesthetist
// role watching one ward, and the generic role/location route.
type Handler struct {
	router         *comms.Router
	logger         zerolog.Logger
	upgrader       websocket.Upgrader
	heartbeatEvery time.Duration
}

// NewHandler creates a websocket handler.
func NewHandler(router *comms.Router, logger zerolog.Logger) *Handler {
	return &Handler{
		router: router,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are hospital UIs served from the same deployment;
			// cross-origin browser access is not a concern here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		heartbeatEvery: defaultHeartbeatInterval,
	}
}

// SetHeartbeatInterval overrides the heartbeat period. Intended for
// tests; the default matches production behavior.
func (h *Handler) SetHeartbeatInterval(d time.Duration) {
	h.heartbeatEvery = d
}

// ServeMonitor handles GET /ws/comms/Anesthetist/ward/{ward_id}. This
// route must be registered before the generic one: it is a special case
// of the same shape.
func (h *Handler) ServeMonitor(w http.ResponseWriter, r *http.Request) {
	wardID, err := strconv.ParseInt(chi.URLParam(r, "ward_id"), 10, 64)
	if err != nil || wardID <= 0 {
		http.Error(w, "invalid ward id", http.StatusBadRequest)
		return
	}
	if _, err := h.router.Store().GetWard(r.Context(), wardID); err != nil {
		h.rejectLookup(w, err)
		return
	}

	h.accept(w, r, sessionConfig{
		role:           models.RoleAnesthetist,
		kind:           models.LocationWard,
		locationID:     wardID,
		monitor:        true,
		heartbeatEvery: h.heartbeatEvery,
	})
}

// ServePeer handles GET /ws/comms/{role}/{location_type}/{location_id}
// for nurse and surgeon sessions, and for anesthetists connecting from
// an operating room.
func (h *Handler) ServePeer(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		http.Error(w, "unknown role", http.StatusNotFound)
		return
	}
	kind, err := models.ParseLocationKind(chi.URLParam(r, "location_type"))
	if err != nil {
		http.Error(w, "unknown location type", http.StatusNotFound)
		return
	}
	locationID, err := strconv.ParseInt(chi.URLParam(r, "location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		http.Error(w, "invalid location id", http.StatusBadRequest)
		return
	}

	switch kind {
	case models.LocationWard:
		_, err = h.router.Store().GetWard(r.Context(), locationID)
	case models.LocationOperatingRoom:
		_, err = h.router.Store().GetOperatingRoom(r.Context(), locationID)
	}
	if err != nil {
		h.rejectLookup(w, err)
		return
	}

	h.accept(w, r, sessionConfig{
		role:           role,
		kind:           kind,
		locationID:     locationID,
		heartbeatEvery: h.heartbeatEvery,
	})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, cfg sessionConfig) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context dies when this handler returns; the session
	// outlives it on the hijacked connection.
	session := newSession(conn, h.router, h.logger, cfg)
	go session.Run(context.Background())
}

func (h *Handler) rejectLookup(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	http.Error(w, "lookup failed", http.StatusInternalServerError)
}
