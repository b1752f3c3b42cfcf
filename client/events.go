package client

import (
	"context"

	"github.com/42wim/matterstate/bridge"
	"github.com/42wim/matterstate/state"
	"github.com/42wim/matterstate/toast"
	"github.com/davecgh/go-spew/spew"
)

// Run applies events until ctx is done or events is closed.
func (c *Client) Run(ctx context.Context, events <-chan *bridge.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				logger.Debug("event channel closed")
				return
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent applies a single event to the stores.
func (c *Client) HandleEvent(ev *bridge.Event) {
	if ev == nil {
		return
	}

	logger.Tracef("event %s on %s: %s", ev.Type, ev.ServerID, spew.Sdump(ev.Data))

	switch e := ev.Data.(type) {
	case *bridge.MembersSyncEvent:
		c.Members.SetAll(ev.ServerID, e.Members)
	case *bridge.MemberAddEvent:
		c.Members.Add(ev.ServerID, e.Member)
	case *bridge.MemberUpdateEvent:
		if !c.Members.Update(ev.ServerID, e.UserID, state.Patch(e.Patch)) {
			logger.Debugf("member update for %s on %s changed nothing", e.UserID, ev.ServerID)
		}
	case *bridge.MemberRemoveEvent:
		c.Members.Remove(ev.ServerID, e.UserID)
	case *bridge.RolesSyncEvent:
		c.Roles.SetAll(ev.ServerID, e.Roles)
	case *bridge.RoleUpdateEvent:
		c.Roles.Add(ev.ServerID, e.Role)
	case *bridge.RoleRemoveEvent:
		c.Roles.Remove(ev.ServerID, e.RoleID)
	case *bridge.ServerUpdateEvent:
		c.Servers.Add(e.Server)
	case *bridge.PresenceEvent:
		c.handlePresence(e.Presence)
	case *bridge.PresenceSnapshotEvent:
		entries := make([]bridge.Presence, 0, len(e.Presences))
		for _, p := range e.Presences {
			if c.ownOffline(p) {
				continue
			}
			p.Status = bridge.ParseStatus(string(p.Status))
			entries = append(entries, p)
		}
		c.Presence.BulkSet(entries)
	case *bridge.TypingEvent:
		c.handleTyping(ev.ServerID, e)
	case *bridge.MessageEvent:
		c.handleMessage(ev.ServerID, e)
	case *bridge.ConnectionLostEvent:
		c.handleConnectionLost(ev.ServerID, e)
	case *bridge.ConnectionEstablishedEvent:
		c.handleConnectionEstablished(ev.ServerID, e)
	case *bridge.ServerLeaveEvent:
		c.ClearServer(ev.ServerID)
	default:
		logger.Debugf("unhandled event %s", ev.Type)
	}
}

// ownOffline reports an offline status for the local user while signed in.
// Directories report that while a connection bounces; the local status is
// authoritative then.
func (c *Client) ownOffline(p bridge.Presence) bool {
	userID, ok := c.Session.UserID()
	return ok && p.UserID == userID && bridge.ParseStatus(string(p.Status)) == bridge.StatusOffline
}

func (c *Client) handlePresence(p bridge.Presence) {
	if c.ownOffline(p) {
		logger.Debugf("ignoring offline for local user %s", p.UserID)
		return
	}

	c.Presence.Set(p.UserID, bridge.ParseStatus(string(p.Status)), p.CustomText)
}

func (c *Client) handleTyping(serverID string, e *bridge.TypingEvent) {
	if userID, ok := c.Session.UserID(); ok && e.UserID == userID {
		return
	}

	if e.Stopped {
		c.Typing.Stop(serverID, e.ChannelID, e.UserID)
		return
	}

	c.Typing.Start(serverID, e.ChannelID, e.UserID)
}

func messageTarget(serverID string, e *bridge.MessageEvent) toast.Target {
	switch {
	case serverID == "":
		return toast.DMTarget(e.PeerID)
	case e.ConversationID != "":
		return toast.ServerDMTarget(serverID, e.ConversationID)
	default:
		return toast.ChannelTarget(serverID, e.ChannelID)
	}
}

// handleMessage marks the channel unseen and raises a toast. Channel
// messages only toast when they mention the local user.
func (c *Client) handleMessage(serverID string, e *bridge.MessageEvent) {
	if userID, ok := c.Session.UserID(); ok && e.AuthorID == userID {
		return
	}

	target := messageTarget(serverID, e)
	viewing := c.Location() == target

	if target.Kind == toast.KindChannel {
		// the message ends the author's typing indicator
		c.Typing.Stop(serverID, e.ChannelID, e.AuthorID)

		if !viewing {
			typ := bridge.NotifyMessage
			if e.Mention {
				typ = bridge.NotifyMention
			}
			c.Notifications.Mark(serverID, e.ChannelID, typ, e.Timestamp)
		}

		if !e.Mention {
			return
		}
	}

	c.Toasts.Add(toast.Toast{
		Target:     target,
		AuthorName: e.AuthorName,
		Avatar:     e.AuthorAvatar,
		Content:    e.Content,
		CreatedAt:  e.Timestamp,
	})
}

func (c *Client) serverAddress(serverID, reported string) string {
	if reported != "" {
		return reported
	}

	if server, ok := c.Servers.Get(serverID); ok && server.Address != "" {
		return server.Address
	}

	return serverID
}

func (c *Client) handleConnectionLost(serverID string, e *bridge.ConnectionLostEvent) {
	conn, ok := c.connection(serverID)
	if !ok || conn.connector == nil {
		logger.Debugf("connection to %s lost, nothing to reconnect with", serverID)
		return
	}

	if e.Unreachable {
		c.startRetry(serverID, c.serverAddress(serverID, e.Address))
		return
	}

	c.scheduleReconnect(serverID)
}

func (c *Client) scheduleReconnect(serverID string) {
	delay := c.Reconnect.ScheduleReconnect(serverID, func() {
		// the server may have been cleared while the timer was pending
		conn, ok := c.connection(serverID)
		if !ok || conn.connector == nil {
			return
		}

		if err := conn.connector.Connect(c.ctx); err != nil {
			logger.Errorf("reconnecting %s failed: %s", serverID, err)
			if c.ctx.Err() == nil {
				c.scheduleReconnect(serverID)
			}

			return
		}

		c.Reconnect.ResetAttempts(serverID)
	})

	logger.Infof("reconnecting %s in %s", serverID, delay)
}

// startRetry probes address until serverID connects again. The address is
// recorded per server so teardown stops the same probe whatever address
// the server is stored under.
func (c *Client) startRetry(serverID, address string) {
	c.mu.Lock()
	prev, ok := c.retries[serverID]
	c.retries[serverID] = address
	c.mu.Unlock()

	if ok && prev != address {
		c.Reconnect.StopServerRetry(prev)
	}

	logger.Infof("%s unreachable, probing", address)
	c.Reconnect.StartServerRetry(address, func() {
		// the server may have been cleared since the probe started
		conn, ok := c.connection(serverID)
		if !ok || conn.connector == nil {
			c.stopRetry(serverID)
			c.Reconnect.StopServerRetry(address)
			return
		}

		if err := conn.connector.Connect(c.ctx); err != nil {
			logger.Debugf("probe of %s failed: %s", address, err)
			return
		}

		c.stopRetry(serverID)
		c.Reconnect.StopServerRetry(address)
	})
}

func (c *Client) stopRetry(serverID string) {
	c.mu.Lock()
	address, ok := c.retries[serverID]
	delete(c.retries, serverID)
	c.mu.Unlock()

	if ok {
		c.Reconnect.StopServerRetry(address)
	}
}

func (c *Client) handleConnectionEstablished(serverID string, e *bridge.ConnectionEstablishedEvent) {
	c.Reconnect.Cancel(serverID)
	c.stopRetry(serverID)
	c.Reconnect.StopServerRetry(c.serverAddress(serverID, e.Address))
}
