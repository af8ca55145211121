package models

import (
	"fmt"
	"strings"
)

// Role identifies a hospital role that can send and receive messages.
type Role string

const (
	RoleNurse       Role = "Nurse"
	RoleSurgeon     Role = "Surgeon"
	RoleAnesthetist Role = "Anesthetist"
)

// Roles lists every known role.
var Roles = []Role{RoleNurse, RoleSurgeon, RoleAnesthetist}

// ParseRole resolves a role name (case-insensitive) to a Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nurse":
		return RoleNurse, nil
	case "surgeon":
		return RoleSurgeon, nil
	case "anesthetist":
		return RoleAnesthetist, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", name, ErrNotFound)
}

// String returns the canonical role name.
func (r Role) String() string {
	return string(r)
}

// Segment returns the group-key segment for the role. The mapping is
// exhaustive so a typo can never produce an orphan group.
func (r Role) Segment() string {
	switch r {
	case RoleNurse:
		return "nurse"
	case RoleSurgeon:
		return "surgeon"
	case RoleAnesthetist:
		return "anesthetist"
	}
	return ""
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Segment() != ""
}

// IsMonitor reports whether the role monitors peer groups instead of
// participating in presence counts.
func (r Role) IsMonitor() bool {
	return r == RoleAnesthetist
}
