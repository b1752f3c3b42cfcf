package state

import (
	"time"

	"github.com/42wim/matterstate/bridge"
)

// Notifications keeps the last unseen event per (server, channel).
type Notifications struct {
	*Keyed[bridge.Notification]
}

func NewNotifications() *Notifications {
	return &Notifications{Keyed: NewKeyed("notifications", bridge.NotificationChannelID)}
}

// Mark records the most recent unseen event of a channel, replacing any
// previous marker.
func (n *Notifications) Mark(serverID, channelID string, typ bridge.NotificationType, ts time.Time) {
	n.Add(serverID, bridge.Notification{ChannelID: channelID, Timestamp: ts, Type: typ})
}

func (n *Notifications) ClearChannel(serverID, channelID string) bool {
	return n.Remove(serverID, channelID)
}

func (n *Notifications) ClearServer(serverID string) bool {
	return n.ClearScope(serverID)
}

// Unread reports whether any channel of the server has a marker, and
// whether one of them is a mention.
func (n *Notifications) Unread(serverID string) (unread, mention bool) {
	sc := n.Scope(serverID)
	for _, id := range sc.IDs() {
		unread = true
		if sc.Ref(id).Type == bridge.NotifyMention {
			return true, true
		}
	}

	return unread, false
}
