// Package perm derives what the local user may do on a server from the
// server, member and role stores. Nothing is cached: every call reads the
// stores again, so a role or membership change is reflected immediately.
package perm

import (
	"github.com/42wim/matterstate/bridge"
	"github.com/42wim/matterstate/state"
)

const (
	TabMembers = "members"
	TabBans    = "bans"
)

const moderatorPerms = bridge.PermKickMembers | bridge.PermBanMembers | bridge.PermManageRoles | bridge.PermManageMessages

// Capabilities is the effective permission set of a user on one server.
type Capabilities struct {
	Effective   bridge.Permissions
	IsOwner     bool
	IsAdmin     bool
	IsModerator bool
	// AllTabs grants every settings tab; Tabs is then empty.
	AllTabs bool
	Tabs    []string
}

// Resolve computes the capabilities of userID on serverID.
func Resolve(servers *state.Servers, members *state.Members, roles *state.Roles, userID, serverID string) Capabilities {
	caps := Capabilities{Tabs: []string{}}

	server, ok := servers.Get(serverID)
	if !ok || userID == "" {
		return caps
	}

	member, ok := members.Get(serverID, userID)
	if !ok {
		return caps
	}

	defs := roles.Scope(serverID)
	for _, roleID := range member.RoleIDs {
		role, ok := defs.Get(roleID)
		if !ok {
			// deleted role not yet pruned from the membership
			continue
		}
		caps.Effective |= role.Permissions
	}

	caps.IsOwner = server.AdminID != "" && server.AdminID == userID
	caps.IsAdmin = caps.IsOwner || caps.Effective.Has(bridge.PermAdministrator)
	caps.IsModerator = !caps.IsAdmin && caps.Effective.Any(moderatorPerms)

	switch {
	case caps.IsAdmin:
		caps.AllTabs = true
	case caps.IsModerator:
		caps.Tabs = []string{TabMembers, TabBans}
	}

	return caps
}

// Can reports whether the capabilities include every bit of p. Admins can
// do everything.
func (c Capabilities) Can(p bridge.Permissions) bool {
	return c.IsAdmin || c.Effective.Has(p)
}
