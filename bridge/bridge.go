package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ErrNotSupported is returned by backends that have no equivalent for an operation.
var ErrNotSupported = errors.New("operation not supported by backend")

// ServerClient is the RPC surface of a single connected server.
// Every call either succeeds or returns an error; an error means the
// operation was not applied.
type ServerClient interface {
	ListMembers(ctx context.Context, limit int) ([]Member, error)
	KickMember(ctx context.Context, userID, reason string) error
	BanMember(ctx context.Context, userID, reason string) error
}

// Directory is the central connection that carries the local user's presence.
// UpdatePresence is fire-and-forget, no acknowledgement is consumed.
type Directory interface {
	UpdatePresence(status Status, customText string)
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDND     Status = "dnd"
	StatusOffline Status = "offline"
)

// ParseStatus maps a wire value to a Status. Unknown values read as offline.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusOnline, StatusIdle, StatusDND, StatusOffline:
		return Status(s)
	case "away":
		return StatusIdle
	}

	return StatusOffline
}

type Server struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	AdminID string `json:"admin_id"`
	Icon    string `json:"icon"`
}

type Member struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Nickname    string    `json:"nickname"`
	Avatar      string    `json:"avatar"`
	RoleIDs     []string  `json:"role_ids"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MemberID is the id extractor for member stores.
func MemberID(m Member) string { return m.UserID }

type Role struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Color       string      `json:"color"`
	Position    int         `json:"position"`
	Permissions Permissions `json:"permissions"`
}

func RoleID(r Role) string { return r.ID }

func ServerID(s Server) string { return s.ID }

type Presence struct {
	UserID     string `json:"user_id"`
	Status     Status `json:"status"`
	CustomText string `json:"custom_text"`
}

func PresenceUserID(p Presence) string { return p.UserID }

type NotificationType string

const (
	NotifyMessage NotificationType = "message"
	NotifyMention NotificationType = "mention"
)

// Notification is the "last unseen event" marker of a channel.
type Notification struct {
	ChannelID string           `json:"channel_id"`
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
}

func NotificationChannelID(n Notification) string { return n.ChannelID }

// Event wraps everything a live connection pushes to the client.
type Event struct {
	Type     string
	ServerID string
	Data     interface{}
}

type MembersSyncEvent struct {
	Members []Member `json:"members"`
}

type MemberAddEvent struct {
	Member Member `json:"member"`
}

type MemberUpdateEvent struct {
	UserID string                 `json:"user_id"`
	Patch  map[string]interface{} `json:"patch"`
}

type MemberRemoveEvent struct {
	UserID string `json:"user_id"`
}

type RolesSyncEvent struct {
	Roles []Role `json:"roles"`
}

type RoleUpdateEvent struct {
	Role Role `json:"role"`
}

type RoleRemoveEvent struct {
	RoleID string `json:"role_id"`
}

type ServerUpdateEvent struct {
	Server Server `json:"server"`
}

type PresenceEvent struct {
	Presence Presence `json:"presence"`
}

type PresenceSnapshotEvent struct {
	Presences []Presence `json:"presences"`
}

type TypingEvent struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Stopped   bool   `json:"stopped"`
}

type MessageEvent struct {
	ChannelID      string    `json:"channel_id"`
	ConversationID string    `json:"conversation_id"`
	PeerID         string    `json:"peer_id"`
	AuthorID       string    `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	AuthorAvatar   string    `json:"author_avatar"`
	Content        string    `json:"content"`
	Mention        bool      `json:"mention"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConnectionLostEvent reports a server connection going away. Unreachable
// is set when the server could not be reached at all, as opposed to an
// established connection that dropped.
type ConnectionLostEvent struct {
	Address     string `json:"address"`
	Unreachable bool   `json:"unreachable"`
}

type ConnectionEstablishedEvent struct {
	Address string `json:"address"`
}

type ServerLeaveEvent struct{}

func newEventData(eventType string) interface{} {
	switch eventType {
	case "members_sync":
		return &MembersSyncEvent{}
	case "member_add":
		return &MemberAddEvent{}
	case "member_update":
		return &MemberUpdateEvent{}
	case "member_remove":
		return &MemberRemoveEvent{}
	case "roles_sync":
		return &RolesSyncEvent{}
	case "role_update":
		return &RoleUpdateEvent{}
	case "role_remove":
		return &RoleRemoveEvent{}
	case "server_update":
		return &ServerUpdateEvent{}
	case "presence":
		return &PresenceEvent{}
	case "presence_snapshot":
		return &PresenceSnapshotEvent{}
	case "typing":
		return &TypingEvent{}
	case "message":
		return &MessageEvent{}
	case "connection_lost":
		return &ConnectionLostEvent{}
	case "connection_established":
		return &ConnectionEstablishedEvent{}
	case "server_leave":
		return &ServerLeaveEvent{}
	}

	return nil
}

// DecodeEvent turns a raw payload of the given type into a typed Event.
// Unknown types and undecodable payloads return false.
func DecodeEvent(eventType, serverID string, payload map[string]interface{}) (*Event, bool) {
	data := newEventData(eventType)
	if data == nil {
		return nil, false
	}

	if err := Decode(payload, data); err != nil {
		return nil, false
	}

	return &Event{Type: eventType, ServerID: serverID, Data: data}, true
}

// Decode decodes input into output using the json field tags.
func Decode(input interface{}, output interface{}) error {
	config := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           output,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
