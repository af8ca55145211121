package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"Nurse", RoleNurse},
		{"nurse", RoleNurse},
		{"SURGEON", RoleSurgeon},
		{" Anesthetist ", RoleAnesthetist},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseRoleUnknown(t *testing.T) {
	_, err := ParseRole("janitor")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoleSegments(t *testing.T) {
	for _, role := range Roles {
		assert.NotEmpty(t, role.Segment(), role)
		assert.True(t, role.Valid())
	}
	assert.False(t, Role("Janitor").Valid())
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "nurse_ward_5", GroupKey(RoleNurse, LocationWard, 5))
	assert.Equal(t, "surgeon_ward_12", GroupKey(RoleSurgeon, LocationWard, 12))
	assert.Equal(t, "anesthetist_operating_room_3", GroupKey(RoleAnesthetist, LocationOperatingRoom, 3))
}

func TestIsMonitor(t *testing.T) {
	assert.True(t, RoleAnesthetist.IsMonitor())
	assert.False(t, RoleNurse.IsMonitor())
	assert.False(t, RoleSurgeon.IsMonitor())
}

func TestParseLocationKind(t *testing.T) {
	kind, err := ParseLocationKind("ward")
	require.NoError(t, err)
	assert.Equal(t, LocationWard, kind)

	kind, err = ParseLocationKind("operating_room")
	require.NoError(t, err)
	assert.Equal(t, LocationOperatingRoom, kind)

	_, err = ParseLocationKind("parking_lot")
	assert.ErrorIs(t, err, ErrNotFound)
}
