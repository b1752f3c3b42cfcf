package bridge

// Permissions is the capability bitset carried by a role.
type Permissions uint64

const (
	PermAdministrator Permissions = 1 << iota
	PermManageServer
	PermManageChannels
	PermManageRoles
	PermKickMembers
	PermBanMembers
	PermManageMessages
	PermManageInvites
	PermSendMessages
	PermReadMessages
	PermAttachFiles
	PermMentionEveryone
	PermConnect
	PermSpeak
)

// Has reports whether every bit of p is set.
func (perms Permissions) Has(p Permissions) bool {
	return perms&p == p
}

// Any reports whether at least one bit of p is set.
func (perms Permissions) Any(p Permissions) bool {
	return perms&p != 0
}
