package state

import (
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const DefaultTypingTTL = 5 * time.Second

type Typer struct {
	UserID string
	Since  time.Time
}

func typerID(t Typer) string { return t.UserID }

type typingKey struct {
	server  string
	channel string
	user    string
}

type typingTimer struct {
	timer *clock.Timer
	gen   uint64
}

// channelScope is the store key of a (server, channel) pair. Both parts are
// quoted so no two pairs share a key, whatever characters the ids contain.
func channelScope(serverID, channelID string) string {
	return strconv.Quote(serverID) + strconv.Quote(channelID)
}

// Typing tracks who is typing in which channel of which server. Every entry
// expires after the TTL unless refreshed by another Start.
//
// Observers of the underlying store run while the tracker lock is held and
// must not call back into Typing.
type Typing struct {
	store *Keyed[Typer]

	clock clock.Clock
	ttl   time.Duration

	mu     sync.Mutex
	gen    uint64
	timers map[typingKey]typingTimer
}

func NewTyping(clk clock.Clock, ttl time.Duration) *Typing {
	if clk == nil {
		clk = clock.New()
	}

	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}

	return &Typing{
		store:  NewKeyed("typing", typerID),
		clock:  clk,
		ttl:    ttl,
		timers: make(map[typingKey]typingTimer),
	}
}

// Subscribe registers fn for every change of the typing state.
func (t *Typing) Subscribe(fn Observer[*Snapshot[Typer]]) func() {
	return t.store.Subscribe(fn)
}

// Start marks userID as typing in a channel and (re)arms its expiry.
func (t *Typing) Start(serverID, channelID, userID string) {
	key := typingKey{server: serverID, channel: channelID, user: userID}
	scope := channelScope(serverID, channelID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.timers[key]; ok {
		cur.timer.Stop()
	}

	if !t.store.Scope(scope).Has(userID) {
		t.store.Add(scope, Typer{UserID: userID, Since: t.clock.Now()})
	}

	t.gen++
	gen := t.gen
	t.timers[key] = typingTimer{
		timer: t.clock.AfterFunc(t.ttl, func() { t.expire(key, gen) }),
		gen:   gen,
	}
}

// Stop removes userID from a channel before its expiry.
func (t *Typing) Stop(serverID, channelID, userID string) bool {
	key := typingKey{server: serverID, channel: channelID, user: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.timers[key]; ok {
		cur.timer.Stop()
		delete(t.timers, key)
	}

	return t.store.Remove(channelScope(serverID, channelID), userID)
}

// Typers returns the sorted ids of users typing in a channel.
func (t *Typing) Typers(serverID, channelID string) []string {
	return t.store.Scope(channelScope(serverID, channelID)).IDs()
}

// ClearChannel cancels every pending expiry of a channel and drops its
// entries.
func (t *Typing) ClearChannel(serverID, channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, cur := range t.timers {
		if key.server == serverID && key.channel == channelID {
			cur.timer.Stop()
			delete(t.timers, key)
		}
	}

	return t.store.ClearScope(channelScope(serverID, channelID))
}

// ClearServer cancels every pending expiry on a server and drops all of its
// channels.
func (t *Typing) ClearServer(serverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	channels := make(map[string]struct{})
	for key, cur := range t.timers {
		if key.server == serverID {
			cur.timer.Stop()
			delete(t.timers, key)
			channels[key.channel] = struct{}{}
		}
	}

	changed := false
	for channel := range channels {
		if t.store.ClearScope(channelScope(serverID, channel)) {
			changed = true
		}
	}

	return changed
}

func (t *Typing) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.timers[key]
	if !ok || cur.gen != gen {
		return
	}

	delete(t.timers, key)
	t.store.Remove(channelScope(key.server, key.channel), key.user)
}
