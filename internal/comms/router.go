package comms

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iplweb/dkp/internal/bus"
	"github.com/iplweb/dkp/internal/metrics"
	"github.com/iplweb/dkp/internal/models"
	"github.com/iplweb/dkp/internal/presence"
	"github.com/iplweb/dkp/internal/store"
)

// Router is the protocol logic shared by every session: it decides which
// group a message targets, persists it, tracks presence, and fans
// acknowledgments out to peers and monitors.
type Router struct {
	store    store.DataStore
	presence presence.Store
	bus      bus.Bus
	logger   zerolog.Logger
}

// NewRouter wires the router to its collaborators.
func NewRouter(st store.DataStore, pres presence.Store, b bus.Bus, logger zerolog.Logger) *Router {
	return &Router{store: st, presence: pres, bus: b, logger: logger}
}

// Bus exposes the broadcast bus for session subscriptions.
func (r *Router) Bus() bus.Bus {
	return r.bus
}

// Store exposes the persistence collaborator for connection validation.
func (r *Router) Store() store.DataStore {
	return r.store
}

// SendRequest is the payload of an inbound send_message event.
type SendRequest struct {
	SenderRole      string `json:"sender_role"`
	RecipientRole   string `json:"recipient_role"`
	MessageType     string `json:"message_type"`
	OperatingRoomID int64  `json:"operating_room_id"`
	WardID          int64  `json:"ward_id"`
}

// SendResult carries everything the session needs for its status reply.
type SendResult struct {
	Message *models.Message
	// Count is the pre-send presence snapshot of the target group: how
	// many recipients were live to receive the message.
	Count int64
}

// HandleSend validates, persists, and routes one message. No partial
// message is created on a validation or lookup failure.
func (r *Router) HandleSend(ctx context.Context, originID string, req SendRequest) (*SendResult, error) {
	if req.SenderRole == "" {
		return nil, fmt.Errorf("%w: sender_role is required", ErrValidation)
	}
	if req.RecipientRole == "" {
		return nil, fmt.Errorf("%w: recipient_role is required", ErrValidation)
	}
	if req.MessageType == "" {
		return nil, fmt.Errorf("%w: message_type is required", ErrValidation)
	}
	if req.OperatingRoomID <= 0 {
		return nil, fmt.Errorf("%w: operating_room_id is required", ErrValidation)
	}
	if req.WardID <= 0 {
		return nil, fmt.Errorf("%w: ward_id is required", ErrValidation)
	}

	sender, err := models.ParseRole(req.SenderRole)
	if err != nil {
		return nil, err
	}
	recipient, err := models.ParseRole(req.RecipientRole)
	if err != nil {
		return nil, err
	}
	if _, err := r.store.GetWard(ctx, req.WardID); err != nil {
		return nil, fmt.Errorf("ward %d: %w", req.WardID, err)
	}

	group := models.GroupKey(recipient, models.LocationWard, req.WardID)

	count, err := r.presence.Get(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("presence lookup: %w", err)
	}

	msg, err := r.store.CreateMessage(ctx, &models.Message{
		SenderRole:      sender,
		RecipientRole:   recipient,
		MessageType:     req.MessageType,
		Content:         req.MessageType,
		OperatingRoomID: req.OperatingRoomID,
		WardID:          req.WardID,
		RecipientCount:  count,
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	orName := r.operatingRoomName(ctx, req.OperatingRoomID)

	ev, err := bus.NewEvent(originID, EventChatMessage, ChatMessagePayload{
		MessageID:         msg.ID,
		SenderRole:        sender.String(),
		RecipientRole:     recipient.String(),
		MessageType:       msg.MessageType,
		Content:           msg.Content,
		WardID:            msg.WardID,
		OperatingRoomID:   msg.OperatingRoomID,
		OperatingRoomName: orName,
		SentAt:            msg.SentAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := r.bus.Publish(ctx, group, ev); err != nil {
		return nil, fmt.Errorf("broadcast message: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(msg.MessageType).Inc()

	r.logger.Info().
		Int64("message_id", msg.ID).
		Str("sender", sender.String()).
		Str("recipient", recipient.String()).
		Str("group", group).
		Int64("recipients_live", count).
		Msg("message routed")

	return &SendResult{Message: msg, Count: count}, nil
}

// operatingRoomName resolves an operating room's display name, falling
// back to a synthetic label when the room is unknown.
func (r *Router) operatingRoomName(ctx context.Context, id int64) string {
	or, err := r.store.GetOperatingRoom(ctx, id)
	if err != nil {
		return fmt.Sprintf("OR #%d", id)
	}
	return or.Name
}

// HandleAcknowledge applies one acknowledgment. Acknowledging an
// already-acknowledged message is a no-op that returns the message with
// its original timestamp and publishes nothing.
//
// When a peer role acknowledges a message addressed to it, every other
// unacknowledged message for that role at that ward is cleared in the
// same action and the room group is told once, with the full id list.
// Monitors are always notified about the triggering message alone.
func (r *Router) HandleAcknowledge(ctx context.Context, originID string, sessionRole models.Role, messageID int64, roleName string) (*models.Message, error) {
	ackRole := sessionRole
	if roleName != "" {
		parsed, err := models.ParseRole(roleName)
		if err != nil {
			return nil, err
		}
		ackRole = parsed
	}

	now := time.Now().UTC()
	msg, acked, err := r.store.AcknowledgeMessage(ctx, messageID, now)
	if err != nil {
		return nil, err
	}
	if !acked {
		return msg, nil
	}

	ackedAt := msg.AcknowledgedAt.UTC().Format(time.RFC3339)

	if !ackRole.IsMonitor() && msg.RecipientRole == ackRole {
		if err := r.bulkAcknowledge(ctx, originID, ackRole, msg, now, ackedAt); err != nil {
			r.logger.Error().Err(err).Int64("message_id", msg.ID).Msg("bulk acknowledgment failed")
		}
	}

	if err := r.notifyMonitors(ctx, originID, msg, ackedAt); err != nil {
		r.logger.Error().Err(err).Int64("message_id", msg.ID).Msg("monitor acknowledgment notify failed")
	}

	metrics.Acknowledgments.WithLabelValues("single").Inc()
	return msg, nil
}

// bulkAcknowledge clears every remaining unacknowledged message for the
// role at the message's ward and announces the whole batch to the room
// group in one event.
func (r *Router) bulkAcknowledge(ctx context.Context, originID string, role models.Role, msg *models.Message, now time.Time, ackedAt string) error {
	pending, err := r.store.FindUnacknowledged(ctx, role, msg.WardID)
	if err != nil {
		return err
	}

	ids := []int64{msg.ID}
	for i := range pending {
		if _, _, err := r.store.AcknowledgeMessage(ctx, pending[i].ID, now); err != nil {
			return err
		}
		ids = append(ids, pending[i].ID)
	}

	group := models.GroupKey(role, models.LocationWard, msg.WardID)
	ev, err := bus.NewEvent(originID, EventGroupAck, GroupAckPayload{
		MessageIDs:        ids,
		AcknowledgingUser: role.String(),
		AcknowledgedAt:    ackedAt,
	})
	if err != nil {
		return err
	}
	if err := r.bus.Publish(ctx, group, ev); err != nil {
		return err
	}

	metrics.Acknowledgments.WithLabelValues("bulk").Add(float64(len(ids)))
	r.logger.Info().
		Ints64("message_ids", ids).
		Str("group", group).
		Msg("bulk acknowledgment broadcast")
	return nil
}

// notifyMonitors publishes the per-message acknowledgment update to the
// monitor broadcast group. The event shape depends on whether the
// message came from a monitor's operating room or from a peer role.
func (r *Router) notifyMonitors(ctx context.Context, originID string, msg *models.Message, ackedAt string) error {
	eventType := EventAckRegular
	if msg.SenderRole.IsMonitor() {
		eventType = EventAckFromOR
	}

	ev, err := bus.NewEvent(originID, eventType, AckUpdatePayload{
		MessageID:       msg.ID,
		MessageType:     msg.MessageType,
		SenderRole:      msg.SenderRole.String(),
		RecipientRole:   msg.RecipientRole.String(),
		WardID:          msg.WardID,
		OperatingRoomID: msg.OperatingRoomID,
		AcknowledgedAt:  ackedAt,
	})
	if err != nil {
		return err
	}
	return r.bus.Publish(ctx, models.MonitorBroadcastGroup, ev)
}

// TrackPresence records a connect or disconnect for a group and tells
// the monitor broadcast group the new count. All counter access goes
// through the store's atomic contract.
func (r *Router) TrackPresence(ctx context.Context, originID, group string, connecting bool) (int64, error) {
	var count int64
	var err error
	if connecting {
		count, err = r.presence.Increment(ctx, group)
	} else {
		count, err = r.presence.Decrement(ctx, group)
	}
	if err != nil {
		return 0, fmt.Errorf("presence update: %w", err)
	}

	metrics.PresenceCount.WithLabelValues(group).Set(float64(count))

	ev, err := bus.NewEvent(originID, EventUserCount, UserCountPayload{
		Group: group,
		Count: count,
	})
	if err != nil {
		return count, err
	}
	if err := r.bus.Publish(ctx, models.MonitorBroadcastGroup, ev); err != nil {
		return count, fmt.Errorf("broadcast user count: %w", err)
	}
	return count, nil
}

// GroupCount reads the current presence count for a group.
func (r *Router) GroupCount(ctx context.Context, group string) (int64, error) {
	return r.presence.Get(ctx, group)
}
