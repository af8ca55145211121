package models

import (
	"fmt"
	"strings"
)

// LocationKind distinguishes the two physical location types a session
// can attach to.
type LocationKind string

const (
	LocationWard          LocationKind = "ward"
	LocationOperatingRoom LocationKind = "operating_room"
)

// ParseLocationKind resolves a URL segment to a LocationKind.
func ParseLocationKind(s string) (LocationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ward":
		return LocationWard, nil
	case "operating_room":
		return LocationOperatingRoom, nil
	}
	return "", fmt.Errorf("unknown location type %q: %w", s, ErrNotFound)
}

// Segment returns the group-key segment for the location kind.
func (k LocationKind) Segment() string {
	return string(k)
}

// Hospital is the top-level tenant every ward and operating room belongs to.
type Hospital struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Website   string `json:"website,omitempty"`
}

// Ward is a hospital ward where nurses and surgeons receive messages.
type Ward struct {
	ID               int64  `json:"id"`
	HospitalID       int64  `json:"hospital_id"`
	Name             string `json:"name"`
	Sort             int    `json:"sort"`
	NurseTelephone   string `json:"nurse_telephone,omitempty"`
	SurgeonTelephone string `json:"surgeon_telephone,omitempty"`
}

// OperatingRoom is the location messages originate from.
type OperatingRoom struct {
	ID         int64  `json:"id"`
	HospitalID int64  `json:"hospital_id"`
	Name       string `json:"name"`
	Sort       int    `json:"sort"`
}

// GroupKey derives the presence/broadcast group for a (role, location)
// pair, e.g. "nurse_ward_5".
func GroupKey(role Role, kind LocationKind, locationID int64) string {
	return fmt.Sprintf("%s_%s_%d", role.Segment(), kind.Segment(), locationID)
}

// MonitorBroadcastGroup is the dedicated channel only anesthetist
// sessions subscribe to; it carries presence updates and per-message
// acknowledgment notifications.
const MonitorBroadcastGroup = "anesthetist_broadcast"
