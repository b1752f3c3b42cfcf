package toast

// Kind is the addressing mode of a toast or of a view location.
type Kind int

const (
	KindNone Kind = iota
	KindDM
	KindServerDM
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindDM:
		return "dm"
	case KindServerDM:
		return "server_dm"
	case KindChannel:
		return "channel"
	}

	return "none"
}

// Target addresses exactly one of: a direct conversation with a peer, a
// server-scoped DM conversation, or a server channel. Build it with the
// constructors so only the ids of one mode are ever set.
type Target struct {
	Kind           Kind
	PeerID         string
	ServerID       string
	ConversationID string
	ChannelID      string
}

func DMTarget(peerID string) Target {
	return Target{Kind: KindDM, PeerID: peerID}
}

func ServerDMTarget(serverID, conversationID string) Target {
	return Target{Kind: KindServerDM, ServerID: serverID, ConversationID: conversationID}
}

func ChannelTarget(serverID, channelID string) Target {
	return Target{Kind: KindChannel, ServerID: serverID, ChannelID: channelID}
}

// Data returns the routing keys a click on the OS notification needs to
// navigate back to the target.
func (t Target) Data() map[string]string {
	data := map[string]string{"type": t.Kind.String()}

	switch t.Kind {
	case KindDM:
		data["peerId"] = t.PeerID
	case KindServerDM:
		data["serverId"] = t.ServerID
		data["conversationId"] = t.ConversationID
	case KindChannel:
		data["serverId"] = t.ServerID
		data["channelId"] = t.ChannelID
	}

	return data
}

// TargetFromData is the inverse of Data. Incomplete data yields false.
func TargetFromData(data map[string]string) (Target, bool) {
	switch data["type"] {
	case "dm":
		if data["peerId"] != "" {
			return DMTarget(data["peerId"]), true
		}
	case "server_dm":
		if data["serverId"] != "" && data["conversationId"] != "" {
			return ServerDMTarget(data["serverId"], data["conversationId"]), true
		}
	case "channel":
		if data["serverId"] != "" && data["channelId"] != "" {
			return ChannelTarget(data["serverId"], data["channelId"]), true
		}
	}

	return Target{}, false
}

// Locator reports what the user is currently looking at.
type Locator interface {
	Location() Target
}

// LocatorFunc adapts a func to a Locator.
type LocatorFunc func() Target

func (f LocatorFunc) Location() Target { return f() }
