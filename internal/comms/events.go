package comms

// Bus event types exchanged between sessions.
const (
	// EventChatMessage delivers a routed message to its recipient group.
	EventChatMessage = "chat_message"
	// EventUserCount carries an updated presence count to the monitor
	// broadcast group.
	EventUserCount = "broadcast_user_count"
	// EventGroupAck tells every co-located session of one role that a
	// batch of messages was acknowledged at once.
	EventGroupAck = "group_acknowledgment_broadcast"
	// EventAckRegular notifies monitors that a peer-role message was
	// acknowledged.
	EventAckRegular = "broadcast_acknowledgment"
	// EventAckFromOR notifies monitors that one of their own
	// operating-room messages was acknowledged.
	EventAckFromOR = "broadcast_acknowledgment_from_or"
)

// ChatMessagePayload is the body of an EventChatMessage.
type ChatMessagePayload struct {
	MessageID         int64  `json:"message_id"`
	SenderRole        string `json:"sender_role"`
	RecipientRole     string `json:"recipient_role"`
	MessageType       string `json:"message_type"`
	Content           string `json:"content"`
	WardID            int64  `json:"ward_id"`
	OperatingRoomID   int64  `json:"operating_room_id"`
	OperatingRoomName string `json:"operating_room_name,omitempty"`
	SentAt            string `json:"sent_at"`
}

// UserCountPayload is the body of an EventUserCount.
type UserCountPayload struct {
	Group string `json:"group"`
	Count int64  `json:"count"`
}

// GroupAckPayload is the body of an EventGroupAck. It lists every
// message cleared by one bulk acknowledgment so co-located sessions see
// the update atomically.
type GroupAckPayload struct {
	MessageIDs        []int64 `json:"message_ids"`
	AcknowledgingUser string  `json:"acknowledging_user"`
	AcknowledgedAt    string  `json:"acknowledged_at"`
}

// AckUpdatePayload is the body of both monitor-facing acknowledgment
// events. It describes exactly one message; monitors filter by ward.
type AckUpdatePayload struct {
	MessageID       int64  `json:"message_id"`
	MessageType     string `json:"message_type"`
	SenderRole      string `json:"sender_role"`
	RecipientRole   string `json:"recipient_role"`
	WardID          int64  `json:"ward_id"`
	OperatingRoomID int64  `json:"operating_room_id"`
	AcknowledgedAt  string `json:"acknowledged_at"`
}
