// Package ws owns the websocket sessions: one long-lived duplex
// connection per connected client, bound to a role and a location.
// There is a single Session type; monitor behavior (the anesthetist
// watching a ward) is a capability set, not a separate implementation.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iplweb/dkp/internal/bus"
	"github.com/iplweb/dkp/internal/comms"
	"github.com/iplweb/dkp/internal/metrics"
	"github.com/iplweb/dkp/internal/models"
)

// defaultHeartbeatInterval is how often a session emits an application
// heartbeat frame.
const defaultHeartbeatInterval = 3 * time.Second

// Buffer sizes for the per-session delivery queues. Overflow drops the
// event instead of blocking a publisher.
const (
	eventQueueSize = 64
	sendQueueSize  = 64
)

// Session states.
const (
	stateConnecting int32 = iota
	stateActive
	stateClosing
	stateClosed
)

// sessionConfig captures the binding decided at connection accept time.
type sessionConfig struct {
	role       models.Role
	kind       models.LocationKind
	locationID int64
	// monitor sessions watch every peer group of one ward plus the
	// monitor broadcast channel, and are never counted in presence.
	monitor        bool
	heartbeatEvery time.Duration
}

// Session is one live connection. It owns its group memberships, its
// heartbeat timer, and the dispatch of inbound events; it never touches
// another session's state directly.
type Session struct {
	id     string
	cfg    sessionConfig
	conn   *websocket.Conn
	router *comms.Router
	logger zerolog.Logger

	// groups is every bus subscription; countGroups is the subset whose
	// presence counts this session reports on get_user_count.
	groups      []string
	countGroups []string
	// ownGroup is the presence group the session is counted in; empty
	// for monitors.
	ownGroup string

	events    chan *bus.Event
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
}

func newSession(conn *websocket.Conn, router *comms.Router, logger zerolog.Logger, cfg sessionConfig) *Session {
	if cfg.heartbeatEvery <= 0 {
		cfg.heartbeatEvery = defaultHeartbeatInterval
	}

	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		conn:   conn,
		router: router,
		events: make(chan *bus.Event, eventQueueSize),
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
	s.logger = logger.With().
		Str("session_id", s.id).
		Str("role", cfg.role.String()).
		Str("location_type", string(cfg.kind)).
		Int64("location_id", cfg.locationID).
		Logger()

	if cfg.monitor {
		s.groups = []string{
			models.GroupKey(models.RoleNurse, models.LocationWard, cfg.locationID),
			models.GroupKey(models.RoleSurgeon, models.LocationWard, cfg.locationID),
			models.MonitorBroadcastGroup,
		}
		s.countGroups = s.groups[:2]
	} else {
		s.ownGroup = models.GroupKey(cfg.role, cfg.kind, cfg.locationID)
		s.groups = []string{s.ownGroup}
		s.countGroups = []string{s.ownGroup}
	}
	return s
}

// ID implements bus.Subscriber.
func (s *Session) ID() string {
	return s.id
}

// Deliver implements bus.Subscriber. It never blocks; if the session's
// queue is full the event is dropped so one slow connection cannot stall
// delivery to the rest of the group.
func (s *Session) Deliver(ev *bus.Event) {
	select {
	case <-s.done:
	case s.events <- ev:
	default:
		metrics.DroppedEvents.WithLabelValues("slow_session").Inc()
		s.logger.Warn().Str("event_type", ev.Type).Msg("event queue full, dropping event")
	}
}

// Run drives the session until the connection drops. It subscribes,
// updates presence, starts the heartbeat and pumps, and guarantees the
// reverse teardown on every exit path.
func (s *Session) Run(ctx context.Context) {
	for _, group := range s.groups {
		s.router.Bus().Subscribe(group, s)
	}
	if !s.cfg.monitor {
		if _, err := s.router.TrackPresence(ctx, s.id, s.ownGroup, true); err != nil {
			s.logger.Error().Err(err).Msg("presence increment failed")
		}
	}
	s.state.Store(stateActive)
	metrics.ActiveConnections.WithLabelValues(s.cfg.role.String()).Inc()
	s.logger.Info().Strs("groups", s.groups).Msg("session connected")

	go s.writePump()
	go s.dispatchEvents()

	s.readPump(ctx)
	s.close()
}

// close runs the CLOSING transition exactly once: timer and pumps are
// stopped, every subscription is dropped, and presence is released
// before the session reaches CLOSED.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(stateClosing)

		for _, group := range s.groups {
			s.router.Bus().Unsubscribe(group, s)
		}
		if !s.cfg.monitor {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := s.router.TrackPresence(ctx, s.id, s.ownGroup, false); err != nil {
				s.logger.Error().Err(err).Msg("presence decrement failed")
			}
		}

		close(s.done)
		s.conn.Close()

		metrics.ActiveConnections.WithLabelValues(s.cfg.role.String()).Dec()
		s.state.Store(stateClosed)
		s.logger.Info().Msg("session closed")
	})
}

// readPump consumes inbound frames until the connection errors out.
func (s *Session) readPump(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				s.logger.Debug().Err(err).Msg("read loop ended")
			}
			return
		}
		s.handleInbound(ctx, data)
	}
}

// writePump is the only goroutine writing to the connection. It drains
// the send queue and emits the heartbeat; both stop when done closes.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			frame, err := json.Marshal(heartbeatFrame{
				Type:      "heartbeat",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// enqueue serializes a frame onto the send queue without blocking.
func (s *Session) enqueue(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("frame marshal failed")
		return
	}
	select {
	case <-s.done:
	case s.send <- data:
	default:
		metrics.DroppedEvents.WithLabelValues("send_queue_full").Inc()
		s.logger.Warn().Msg("send queue full, dropping frame")
	}
}

// handleInbound dispatches one client event. Unrecognized types are
// dropped without an error so newer clients keep working against older
// servers.
func (s *Session) handleInbound(ctx context.Context, data []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.enqueue(errorFrame{Type: "error", Message: "malformed event"})
		return
	}

	switch ev.Type {
	case "send_message":
		s.handleSendMessage(ctx, ev)
	case "acknowledge":
		s.handleAcknowledge(ctx, ev)
	case "get_user_count":
		s.handleGetUserCount(ctx)
	default:
		s.logger.Debug().Str("event_type", ev.Type).Msg("ignoring unrecognized event type")
	}
}

func (s *Session) handleSendMessage(ctx context.Context, ev inboundEvent) {
	result, err := s.router.HandleSend(ctx, s.id, comms.SendRequest{
		SenderRole:      ev.SenderRole,
		RecipientRole:   ev.RecipientRole,
		MessageType:     ev.MessageType,
		OperatingRoomID: ev.OperatingRoomID,
		WardID:          ev.WardID,
	})
	if err != nil {
		s.reportError(err, "send_message")
		return
	}

	s.enqueue(messageStatusFrame{
		Type:        "message_status",
		MessageID:   result.Message.ID,
		MessageType: result.Message.MessageType,
		Status:      "sent",
		Count:       result.Count,
		Timestamp:   result.Message.SentAt.UTC().Format(time.RFC3339),
	})
}

func (s *Session) handleAcknowledge(ctx context.Context, ev inboundEvent) {
	if ev.MessageID <= 0 {
		s.enqueue(errorFrame{Type: "error", Message: "acknowledge: message_id is required"})
		return
	}
	if _, err := s.router.HandleAcknowledge(ctx, s.id, s.cfg.role, ev.MessageID, ev.Role); err != nil {
		s.reportError(err, "acknowledge")
	}
	// Confirmation reaches the client through the group and monitor
	// broadcasts, not a direct reply.
}

func (s *Session) handleGetUserCount(ctx context.Context) {
	for _, group := range s.countGroups {
		count, err := s.router.GroupCount(ctx, group)
		if err != nil {
			s.reportError(err, "get_user_count")
			return
		}
		s.enqueue(userCountFrame{Type: "user_count", Group: group, Count: count})
	}
}

// reportError surfaces a request failure to this client only. The
// connection stays open, and no other session is affected.
func (s *Session) reportError(err error, op string) {
	switch {
	case errors.Is(err, comms.ErrValidation):
		s.enqueue(errorFrame{Type: "error", Message: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		s.enqueue(errorFrame{Type: "error", Message: err.Error()})
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("request failed")
		s.enqueue(errorFrame{Type: "error", Message: op + " failed"})
	}
}

// dispatchEvents translates bus events into client frames, applying the
// session's visibility rules.
func (s *Session) dispatchEvents() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.dispatchEvent(ev)
		}
	}
}

func (s *Session) dispatchEvent(ev *bus.Event) {
	switch ev.Type {
	case comms.EventChatMessage:
		// Monitors subscribe to the groups they send into; they never
		// display chat traffic, their own included.
		if s.cfg.monitor {
			return
		}
		var p comms.ChatMessagePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		s.enqueue(messageFrame{
			Type:              "message",
			MessageID:         p.MessageID,
			SenderRole:        p.SenderRole,
			RecipientRole:     p.RecipientRole,
			MessageType:       p.MessageType,
			Content:           p.Content,
			SentAt:            p.SentAt,
			OperatingRoomID:   p.OperatingRoomID,
			OperatingRoomName: p.OperatingRoomName,
		})

	case comms.EventUserCount:
		var p comms.UserCountPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		// Only counts for the watched ward's groups are relevant.
		if !s.watchesGroup(p.Group) {
			return
		}
		s.enqueue(userCountFrame{Type: "user_count", Group: p.Group, Count: p.Count})

	case comms.EventGroupAck:
		// The bulk broadcast is peer-facing; monitors get per-message
		// updates on their own channel instead.
		if s.cfg.monitor {
			return
		}
		var p comms.GroupAckPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		s.enqueue(broadcastAckFrame{
			Type:              "broadcast_acknowledge",
			MessageIDs:        p.MessageIDs,
			AcknowledgingUser: p.AcknowledgingUser,
			AcknowledgedAt:    p.AcknowledgedAt,
		})

	case comms.EventAckRegular, comms.EventAckFromOR:
		var p comms.AckUpdatePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		// Both shapes arrive on the monitor broadcast channel; keep
		// only those for the watched ward.
		if p.WardID != s.cfg.locationID {
			return
		}
		s.enqueue(ackUpdateFrame{
			Type:           "acknowledgment_update",
			MessageID:      p.MessageID,
			MessageType:    p.MessageType,
			AcknowledgedAt: p.AcknowledgedAt,
		})

	default:
		s.logger.Debug().Str("event_type", ev.Type).Msg("ignoring unrecognized bus event")
	}
}

// watchesGroup reports whether a presence group belongs to this
// session's watched location. Exact membership comparison, so a count
// for ward 15 can never leak to the monitor of ward 1 or ward 5.
func (s *Session) watchesGroup(group string) bool {
	for _, g := range s.countGroups {
		if g == group {
			return true
		}
	}
	return false
}
