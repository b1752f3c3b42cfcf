package state

import "github.com/42wim/matterstate/bridge"

// Members holds per-server membership: server id -> user id -> member.
type Members = Keyed[bridge.Member]

// Roles holds per-server role definitions: server id -> role id -> role.
type Roles = Keyed[bridge.Role]

// Servers holds the metadata of every joined server.
type Servers = Table[bridge.Server]

func NewMembers() *Members {
	return NewKeyed("members", bridge.MemberID)
}

func NewRoles() *Roles {
	return NewKeyed("roles", bridge.RoleID)
}

func NewServers() *Servers {
	return NewTable("servers", bridge.ServerID)
}
