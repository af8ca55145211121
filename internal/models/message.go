package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups for unknown roles, locations and
// messages.
var ErrNotFound = errors.New("not found")

// Message is one routed communication event between two roles. Both the
// originating operating room and the destination ward are always
// recorded.
type Message struct {
	ID              int64      `json:"id"`
	HospitalID      int64      `json:"hospital_id"`
	SenderRole      Role       `json:"sender_role"`
	RecipientRole   Role       `json:"recipient_role"`
	MessageType     string     `json:"message_type"`
	Content         string     `json:"content"`
	OperatingRoomID int64      `json:"operating_room_id"`
	WardID          int64      `json:"ward_id"`
	RecipientCount  int64      `json:"recipient_count"`
	SentAt          time.Time  `json:"sent_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
}

// Acknowledged reports whether the message has been acknowledged.
func (m *Message) Acknowledged() bool {
	return m.AcknowledgedAt != nil
}

// MessageType is reference data describing one message code clients can
// send: who may send it, who receives it, and how to render the button.
type MessageType struct {
	ID                 int64  `json:"id"`
	HospitalID         int64  `json:"hospital_id"`
	Code               string `json:"code"`
	SourceRole         Role   `json:"source_role"`
	TargetRole         Role   `json:"target_role"`
	ShortDescriptionEN string `json:"short_description_en"`
	FullDescriptionEN  string `json:"full_description_en"`
	ShortDescriptionPL string `json:"short_description_pl"`
	FullDescriptionPL  string `json:"full_description_pl"`
	ButtonColor        string `json:"button_color"`
	DisplayOrder       int    `json:"display_order"`
	IsActive           bool   `json:"is_active"`
}
