// Package reconnect schedules reconnection attempts for dropped server
// connections and periodic reachability probes for servers that could not
// be reached at all.
package reconnect

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMin           = time.Second
	DefaultMax           = 30 * time.Second
	DefaultProbeInterval = 5 * time.Second
)

var logger = logrus.WithFields(logrus.Fields{"prefix": "reconnect"})

func SetLogger(l *logrus.Entry) {
	logger = l
}

type Options struct {
	Clock         clock.Clock
	Min           time.Duration
	Max           time.Duration
	ProbeInterval time.Duration
}

type pending struct {
	timer *clock.Timer
	gen   uint64
}

type probe struct {
	ticker *clock.Ticker
	done   chan struct{}
}

// Manager keeps at most one pending reconnect timer and at most one probe
// per key.
type Manager struct {
	clock         clock.Clock
	min, max      time.Duration
	probeInterval time.Duration

	mu       sync.Mutex
	gen      uint64
	backoffs map[string]*backoff.Backoff
	timers   map[string]pending
	probes   map[string]probe
}

func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	if opts.Min <= 0 {
		opts.Min = DefaultMin
	}

	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}

	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}

	return &Manager{
		clock:         opts.Clock,
		min:           opts.Min,
		max:           opts.Max,
		probeInterval: opts.ProbeInterval,
		backoffs:      make(map[string]*backoff.Backoff),
		timers:        make(map[string]pending),
		probes:        make(map[string]probe),
	}
}

// ScheduleReconnect arms a single call of fn after min(Min*2^attempts, Max),
// where attempts counts the calls for key since the last ResetAttempts.
// A timer still pending for key is replaced. The caller re-schedules on
// renewed failure and calls ResetAttempts on success.
func (m *Manager) ScheduleReconnect(key string, fn func()) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.backoffs[key]
	if !ok {
		b = &backoff.Backoff{
			Min:    m.min,
			Max:    m.max,
			Factor: 2,
			Jitter: false,
		}
		m.backoffs[key] = b
	}

	d := b.Duration()

	if cur, ok := m.timers[key]; ok {
		cur.timer.Stop()
	}

	m.gen++
	gen := m.gen
	m.timers[key] = pending{
		timer: m.clock.AfterFunc(d, func() { m.fire(key, gen, fn) }),
		gen:   gen,
	}

	logger.Debugf("%s: reconnecting in %s (attempt %.0f)", key, d, b.Attempt())

	return d
}

// ResetAttempts forgets the attempt count of key. A reconnect that is
// already pending stays armed; use Cancel to drop it.
func (m *Manager) ResetAttempts(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.backoffs, key)
}

// Attempts returns how many reconnects were scheduled for key since the
// last reset.
func (m *Manager) Attempts(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.backoffs[key]
	if !ok {
		return 0
	}

	return int(b.Attempt())
}

// Pending reports whether a reconnect timer is armed for key.
func (m *Manager) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.timers[key]

	return ok
}

func (m *Manager) fire(key string, gen uint64, fn func()) {
	m.mu.Lock()
	cur, ok := m.timers[key]
	if !ok || cur.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.timers, key)
	m.mu.Unlock()

	logger.Debugf("%s: reconnecting", key)
	fn()
}

// StartServerRetry probes address every probe interval until stopped.
// A second call for an address that is already probed does nothing.
func (m *Manager) StartServerRetry(address string, probeFn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.probes[address]; ok {
		return
	}

	p := probe{
		ticker: m.clock.Ticker(m.probeInterval),
		done:   make(chan struct{}),
	}
	m.probes[address] = p

	logger.Debugf("%s: probing every %s", address, m.probeInterval)

	go func() {
		for {
			select {
			case <-p.done:
				return
			case <-p.ticker.C:
				select {
				case <-p.done:
					return
				default:
				}
				probeFn()
			}
		}
	}()
}

func (m *Manager) StopServerRetry(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopProbeLocked(address)
}

// Probing reports whether a probe is running for address.
func (m *Manager) Probing(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.probes[address]

	return ok
}

func (m *Manager) StopAllRetries() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for address := range m.probes {
		m.stopProbeLocked(address)
	}
}

// Cancel stops everything scheduled for key: the reconnect timer, the
// attempt counter and the probe.
func (m *Manager) Cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.backoffs, key)
	m.stopTimerLocked(key)
	m.stopProbeLocked(key)
}

// Close stops every timer and probe.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.timers {
		m.stopTimerLocked(key)
	}

	for address := range m.probes {
		m.stopProbeLocked(address)
	}

	m.backoffs = make(map[string]*backoff.Backoff)
}

func (m *Manager) stopTimerLocked(key string) {
	if cur, ok := m.timers[key]; ok {
		cur.timer.Stop()
		delete(m.timers, key)
	}
}

func (m *Manager) stopProbeLocked(address string) {
	p, ok := m.probes[address]
	if !ok {
		return
	}

	p.ticker.Stop()
	close(p.done)
	delete(m.probes, address)
	logger.Debugf("%s: probe stopped", address)
}
