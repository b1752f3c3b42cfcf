// Package client owns the whole client-side state of a signed-in user:
// every store, the idle detector, the reconnection manager and the toast
// queue. Live connections feed it events; views read its stores.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/42wim/matterstate/bridge"
	"github.com/42wim/matterstate/idle"
	"github.com/42wim/matterstate/perm"
	"github.com/42wim/matterstate/reconnect"
	"github.com/42wim/matterstate/state"
	"github.com/42wim/matterstate/storage"
	"github.com/42wim/matterstate/toast"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("server not connected")
	ErrNoSession    = errors.New("no active session")
)

const statusKey = "presence.status"

var logger = logrus.WithFields(logrus.Fields{"prefix": "client"})

func SetLogger(l *logrus.Entry) {
	logger = l
}

// Connector re-establishes the live connection of one server.
type Connector interface {
	Connect(ctx context.Context) error
}

// ConnectorFunc adapts a func to a Connector.
type ConnectorFunc func(ctx context.Context) error

func (f ConnectorFunc) Connect(ctx context.Context) error { return f(ctx) }

type Options struct {
	Clock         clock.Clock
	Directory     bridge.Directory
	Notifier      toast.Notifier
	Storage       storage.KV
	IdleTimeout   time.Duration
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
	ProbeInterval time.Duration
	ToastLimit    int
	ToastTTL      time.Duration
	PreviewLength int
	TypingTTL     time.Duration
}

type connection struct {
	rpc       bridge.ServerClient
	connector Connector
}

type savedStatus struct {
	Status bridge.Status `json:"status"`
	Custom string        `json:"custom"`
}

type Client struct {
	Servers       *state.Servers
	Members       *state.Members
	Roles         *state.Roles
	Presence      *state.Presence
	Notifications *state.Notifications
	Typing        *state.Typing
	Session       *state.Session
	Toasts        *toast.Queue
	Idle          *idle.Detector
	Reconnect     *reconnect.Manager

	directory bridge.Directory
	kv        storage.KV

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	conns    map[string]connection
	retries  map[string]string // server id -> probed address
	location toast.Target
}

func New(opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		Servers:       state.NewServers(),
		Members:       state.NewMembers(),
		Roles:         state.NewRoles(),
		Presence:      state.NewPresence(),
		Notifications: state.NewNotifications(),
		Typing:        state.NewTyping(opts.Clock, opts.TypingTTL),
		Session:       state.NewSession(),
		directory:     opts.Directory,
		kv:            opts.Storage,
		ctx:           ctx,
		cancel:        cancel,
		conns:         make(map[string]connection),
		retries:       make(map[string]string),
	}

	c.Toasts = toast.NewQueue(toast.Options{
		Clock:         opts.Clock,
		Locator:       toast.LocatorFunc(c.Location),
		Notifier:      opts.Notifier,
		Limit:         opts.ToastLimit,
		TTL:           opts.ToastTTL,
		PreviewLength: opts.PreviewLength,
	})

	c.Idle = idle.New(idle.Options{
		Clock:     opts.Clock,
		Timeout:   opts.IdleTimeout,
		Presence:  c.Presence,
		Session:   c.Session,
		Directory: opts.Directory,
	})

	c.Reconnect = reconnect.New(reconnect.Options{
		Clock:         opts.Clock,
		Min:           opts.ReconnectMin,
		Max:           opts.ReconnectMax,
		ProbeInterval: opts.ProbeInterval,
	})

	return c
}

// Attach registers the RPC client and the reconnect hook of a server.
func (c *Client) Attach(serverID string, rpc bridge.ServerClient, connector Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conns[serverID] = connection{rpc: rpc, connector: connector}
}

func (c *Client) connection(serverID string) (connection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conn, ok := c.conns[serverID]

	return conn, ok
}

// BeginSession signs userID in: it restores the last manually chosen
// status (online by default), pushes it to the directory and starts the
// idle detector.
func (c *Client) BeginSession(userID string) {
	c.Session.Begin(userID)

	saved := savedStatus{Status: bridge.StatusOnline}
	if c.kv != nil {
		var stored savedStatus
		if storage.GetJSON(c.kv, statusKey, &stored) && stored.Status != "" {
			saved = savedStatus{Status: bridge.ParseStatus(string(stored.Status)), Custom: stored.Custom}
		}
	}

	c.Presence.Set(userID, saved.Status, saved.Custom)
	c.pushPresence(saved.Status, saved.Custom)
	c.Idle.Start()

	logger.Infof("session started for %s (%s)", userID, saved.Status)
}

// EndSession signs the local user out.
func (c *Client) EndSession() {
	c.Idle.Stop()

	if userID, ok := c.Session.UserID(); ok {
		c.Presence.Clear(userID)
	}

	c.Session.End()
}

// SetStatus applies a status the user picked. It is persisted and
// propagated, and it supersedes any idle transition the detector made.
func (c *Client) SetStatus(status bridge.Status, custom string) error {
	userID, ok := c.Session.UserID()
	if !ok {
		return ErrNoSession
	}

	c.Idle.ClearAutoIdle()
	c.Presence.Set(userID, status, custom)
	c.pushPresence(status, custom)

	if c.kv != nil {
		if err := storage.SetJSON(c.kv, statusKey, savedStatus{Status: status, Custom: custom}); err != nil {
			logger.Errorf("persisting status failed: %s", err)
		}
	}

	return nil
}

func (c *Client) pushPresence(status bridge.Status, custom string) {
	if c.directory != nil {
		c.directory.UpdatePresence(status, custom)
	}
}

// View records what the user is looking at. Toasts for it are suppressed
// and a channel's unseen marker is cleared.
func (c *Client) View(location toast.Target) {
	c.mu.Lock()
	c.location = location
	c.mu.Unlock()

	if location.Kind == toast.KindChannel {
		c.Notifications.ClearChannel(location.ServerID, location.ChannelID)
	}
}

func (c *Client) Location() toast.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.location
}

// Capabilities resolves the local user's permissions on serverID. It is
// computed from the stores on every call.
func (c *Client) Capabilities(serverID string) perm.Capabilities {
	userID, _ := c.Session.UserID()
	return perm.Resolve(c.Servers, c.Members, c.Roles, userID, serverID)
}

// ClearServer tears down everything held for serverID. Timers go first so
// none of them fires against state that is already gone.
func (c *Client) ClearServer(serverID string) {
	c.Reconnect.Cancel(serverID)
	c.stopRetry(serverID)
	if server, ok := c.Servers.Get(serverID); ok && server.Address != "" {
		c.Reconnect.StopServerRetry(server.Address)
	}

	c.Typing.ClearServer(serverID)

	c.mu.Lock()
	delete(c.conns, serverID)
	c.mu.Unlock()

	c.Notifications.ClearServer(serverID)
	c.Members.ClearScope(serverID)
	c.Roles.ClearScope(serverID)
	c.Servers.Remove(serverID)

	logger.Infof("cleared state of server %s", serverID)
}

// Close stops every timer the client owns.
func (c *Client) Close() {
	c.cancel()
	c.Idle.Stop()
	c.Reconnect.Close()
	c.Toasts.Close()
}
