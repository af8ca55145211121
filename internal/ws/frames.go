package ws

// Client-facing frame shapes. Every frame carries a "type" discriminator
// so clients can dispatch without guessing.

type heartbeatFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type messageFrame struct {
	Type              string `json:"type"`
	MessageID         int64  `json:"message_id"`
	SenderRole        string `json:"sender_role"`
	RecipientRole     string `json:"recipient_role"`
	MessageType       string `json:"message_type"`
	Content           string `json:"content"`
	SentAt            string `json:"sent_at"`
	OperatingRoomID   int64  `json:"operating_room_id,omitempty"`
	OperatingRoomName string `json:"operating_room_name,omitempty"`
}

type messageStatusFrame struct {
	Type        string `json:"type"`
	MessageID   int64  `json:"message_id"`
	MessageType string `json:"message_type"`
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	Timestamp   string `json:"timestamp"`
}

type userCountFrame struct {
	Type  string `json:"type"`
	Group string `json:"group"`
	Count int64  `json:"count"`
}

type ackUpdateFrame struct {
	Type           string `json:"type"`
	MessageID      int64  `json:"message_id"`
	MessageType    string `json:"message_type"`
	AcknowledgedAt string `json:"acknowledged_at"`
}

type broadcastAckFrame struct {
	Type              string  `json:"type"`
	MessageIDs        []int64 `json:"message_ids"`
	AcknowledgingUser string  `json:"acknowledging_user"`
	AcknowledgedAt    string  `json:"acknowledged_at"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// inboundEvent is the superset of fields across the recognized inbound
// event types.
type inboundEvent struct {
	Type            string `json:"type"`
	SenderRole      string `json:"sender_role"`
	RecipientRole   string `json:"recipient_role"`
	MessageType     string `json:"message_type"`
	OperatingRoomID int64  `json:"operating_room_id"`
	WardID          int64  `json:"ward_id"`
	MessageID       int64  `json:"message_id"`
	Role            string `json:"role"`
}
