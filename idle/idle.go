// Package idle demotes the local user's presence to idle after a period
// without input, and restores it on the next input event.
package idle

import (
	"sync"
	"time"

	"github.com/42wim/matterstate/bridge"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 5 * time.Minute

var logger = logrus.WithFields(logrus.Fields{"prefix": "idle"})

func SetLogger(l *logrus.Entry) {
	logger = l
}

// InputKind is the kind of a host input event.
type InputKind int

const (
	PointerMove InputKind = iota
	KeyDown
	PointerDown
	TouchStart
	Scroll
	WindowFocus
	WindowBlur
)

func (k InputKind) qualifies() bool {
	switch k {
	case PointerMove, KeyDown, PointerDown, TouchStart, Scroll:
		return true
	}

	return false
}

// PresenceStore is the part of the presence tracker the detector needs.
type PresenceStore interface {
	Get(userID string) (bridge.Presence, bool)
	Set(userID string, status bridge.Status, customText string)
}

type SessionSource interface {
	UserID() (string, bool)
}

type Options struct {
	Clock     clock.Clock
	Timeout   time.Duration
	Presence  PresenceStore
	Session   SessionSource
	Directory bridge.Directory
}

// Detector is a two-state machine: stopped, or running with a countdown
// armed. Only transitions it made itself are undone on activity; a status
// the user picked (dnd, manual idle, offline) is never touched.
//
// The presence store is written while the detector lock is held, so its
// observers must not call back into the Detector.
type Detector struct {
	clock     clock.Clock
	timeout   time.Duration
	presence  PresenceStore
	session   SessionSource
	directory bridge.Directory

	mu           sync.Mutex
	initialized  bool
	wasAutoIdled bool
	timer        *clock.Timer
	gen          uint64
}

func New(opts Options) *Detector {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Detector{
		clock:     opts.Clock,
		timeout:   opts.Timeout,
		presence:  opts.Presence,
		session:   opts.Session,
		directory: opts.Directory,
	}
}

// Start begins listening for activity and arms the countdown. Calling Start
// on a running detector does nothing.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return
	}

	d.initialized = true
	d.armLocked()
	logger.Debugf("started, timeout %s", d.timeout)
}

// Stop cancels the countdown and forgets any auto-idle. Calling Stop on a
// stopped detector does nothing.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}

	d.initialized = false
	d.wasAutoIdled = false
	d.disarmLocked()
	logger.Debug("stopped")
}

// Activity reports a host input event. Qualifying events restart the
// countdown and undo an auto-idle.
func (d *Detector) Activity(kind InputKind) {
	if !kind.qualifies() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}

	d.armLocked()

	if !d.wasAutoIdled {
		return
	}

	d.wasAutoIdled = false

	userID, ok := d.session.UserID()
	if !ok {
		return
	}

	logger.Debug("activity after auto-idle, restoring online")
	d.setLocked(userID, bridge.StatusOnline)
}

func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.initialized
}

func (d *Detector) AutoIdled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.wasAutoIdled
}

// ClearAutoIdle forgets an auto-idle, so that a status chosen by the user
// after it is not overwritten by the next activity.
func (d *Detector) ClearAutoIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.wasAutoIdled = false
}

func (d *Detector) armLocked() {
	d.disarmLocked()

	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.timeout, func() { d.expire(gen) })
}

func (d *Detector) disarmLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// invalidate a callback that already fired but has not taken the lock yet
	d.gen++
}

func (d *Detector) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized || gen != d.gen {
		return
	}

	d.timer = nil

	userID, ok := d.session.UserID()
	if !ok {
		return
	}

	cur, ok := d.presence.Get(userID)
	if !ok || cur.Status != bridge.StatusOnline {
		logger.Debugf("countdown expired with status %q, leaving it alone", cur.Status)
		return
	}

	d.wasAutoIdled = true
	logger.Debug("no activity, going idle")
	d.setLocked(userID, bridge.StatusIdle)
}

func (d *Detector) setLocked(userID string, status bridge.Status) {
	custom := ""
	if cur, ok := d.presence.Get(userID); ok {
		custom = cur.CustomText
	}

	d.presence.Set(userID, status, custom)

	if d.directory != nil {
		d.directory.UpdatePresence(status, custom)
	}
}
