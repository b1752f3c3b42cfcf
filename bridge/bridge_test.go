package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"online":  StatusOnline,
		"idle":    StatusIdle,
		"away":    StatusIdle,
		"dnd":     StatusDND,
		"offline": StatusOffline,
		"":        StatusOffline,
		"lurking": StatusOffline,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseStatus(in), in)
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, ok := DecodeEvent("members_sync", "s1", map[string]interface{}{
		"members": []interface{}{
			map[string]interface{}{
				"user_id":   "u1",
				"username":  "alice",
				"role_ids":  []interface{}{"r1"},
				"joined_at": "2023-04-05T06:07:08Z",
			},
		},
	})
	require.True(t, ok)
	assert.Equal(t, "s1", ev.ServerID)

	data, ok := ev.Data.(*MembersSyncEvent)
	require.True(t, ok)
	require.Len(t, data.Members, 1)
	assert.Equal(t, "alice", data.Members[0].Username)
	assert.Equal(t, []string{"r1"}, data.Members[0].RoleIDs)
	assert.True(t, data.Members[0].JoinedAt.Equal(time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)))
}

func TestDecodeEventWeakTypes(t *testing.T) {
	ev, ok := DecodeEvent("role_update", "s1", map[string]interface{}{
		"role": map[string]interface{}{
			"id":          "r1",
			"position":    "3",
			"permissions": float64(PermKickMembers | PermBanMembers),
		},
	})
	require.True(t, ok)

	role := ev.Data.(*RoleUpdateEvent).Role
	assert.Equal(t, 3, role.Position)
	assert.True(t, role.Permissions.Has(PermKickMembers|PermBanMembers))
}

func TestDecodeEventRejects(t *testing.T) {
	_, ok := DecodeEvent("no_such_event", "s1", nil)
	assert.False(t, ok)

	_, ok = DecodeEvent("typing", "s1", map[string]interface{}{"stopped": []interface{}{1, 2}})
	assert.False(t, ok)
}

func TestPermissions(t *testing.T) {
	p := PermKickMembers | PermSendMessages

	assert.True(t, p.Has(PermKickMembers))
	assert.False(t, p.Has(PermKickMembers|PermBanMembers))
	assert.True(t, p.Any(PermKickMembers|PermBanMembers))
	assert.False(t, p.Any(PermAdministrator))
}
