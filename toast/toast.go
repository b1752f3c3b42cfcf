// Package toast is the bounded queue of in-app toasts and the OS level
// notification side effect that goes with each of them.
package toast

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 5
	DefaultTTL   = 5 * time.Second
)

var logger = logrus.WithFields(logrus.Fields{"prefix": "toast"})

func SetLogger(l *logrus.Entry) {
	logger = l
}

type Toast struct {
	ID         uint64
	Target     Target
	AuthorName string
	Avatar     string
	Content    string
	CreatedAt  time.Time
}

// Notifier is the OS notification sink. Notify is fire-and-forget.
type Notifier interface {
	Notify(title, body string, data map[string]string)
}

type Options struct {
	Clock         clock.Clock
	Locator       Locator
	Notifier      Notifier
	Limit         int
	TTL           time.Duration
	PreviewLength int
}

type dismissTimer struct {
	timer *clock.Timer
	gen   uint64
}

// Queue holds at most Limit toasts, oldest evicted first.
type Queue struct {
	clock    clock.Clock
	locator  Locator
	notifier Notifier
	limit    int
	ttl      time.Duration
	preview  int

	mu        sync.Mutex
	seq       uint64
	gen       uint64
	toasts    []Toast
	timers    map[uint64]dismissTimer
	observers []toastObserver
	nextObs   int
}

type toastObserver struct {
	id int
	fn func([]Toast)
}

func NewQueue(opts Options) *Queue {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}

	return &Queue{
		clock:    opts.Clock,
		locator:  opts.Locator,
		notifier: opts.Notifier,
		limit:    opts.Limit,
		ttl:      opts.TTL,
		preview:  opts.PreviewLength,
		timers:   make(map[uint64]dismissTimer),
	}
}

// Add enqueues t and fires the OS notification, unless the user is already
// looking at t's target, in which case nothing happens at all.
func (q *Queue) Add(t Toast) (Toast, bool) {
	if q.locator != nil && q.locator.Location() == t.Target {
		logger.Debugf("suppressing toast for %s: already viewing it", t.Target.Kind)
		return Toast{}, false
	}

	q.mu.Lock()
	q.seq++
	t.ID = q.seq
	if t.CreatedAt.IsZero() {
		t.CreatedAt = q.clock.Now()
	}

	toasts := append(append(make([]Toast, 0, len(q.toasts)+1), q.toasts...), t)
	if len(toasts) > q.limit {
		for _, evicted := range toasts[:len(toasts)-q.limit] {
			q.stopTimerLocked(evicted.ID)
		}
		toasts = toasts[len(toasts)-q.limit:]
	}
	q.toasts = toasts
	q.mu.Unlock()

	q.notify(toasts)

	if q.notifier != nil {
		q.notifier.Notify(t.AuthorName, Preview(t.Content, q.preview), t.Target.Data())
	}

	return t, true
}

// Remove drops the toast with the given id. Unknown ids are ignored, so a
// click and the auto-dismiss timer may both call it.
func (q *Queue) Remove(id uint64) bool {
	q.mu.Lock()
	idx := -1
	for i, t := range q.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}

	if idx < 0 {
		q.mu.Unlock()
		return false
	}

	toasts := make([]Toast, 0, len(q.toasts)-1)
	toasts = append(toasts, q.toasts[:idx]...)
	toasts = append(toasts, q.toasts[idx+1:]...)
	q.toasts = toasts
	q.stopTimerLocked(id)
	q.mu.Unlock()

	q.notify(toasts)

	return true
}

// Rendered starts the auto-dismiss window of a displayed toast.
func (q *Queue) Rendered(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	found := false
	for _, t := range q.toasts {
		if t.ID == id {
			found = true
			break
		}
	}

	if !found {
		return false
	}

	q.stopTimerLocked(id)

	q.gen++
	gen := q.gen
	q.timers[id] = dismissTimer{
		timer: q.clock.AfterFunc(q.ttl, func() { q.dismiss(id, gen) }),
		gen:   gen,
	}

	return true
}

// List returns the queued toasts in insertion order.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]Toast(nil), q.toasts...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.toasts)
}

// Subscribe registers fn for every change of the queue. The returned func
// removes it again and may be called more than once.
func (q *Queue) Subscribe(fn func([]Toast)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextObs++
	id := q.nextObs
	q.observers = append(q.observers, toastObserver{id: id, fn: fn})

	var once sync.Once

	return func() {
		once.Do(func() { q.unsubscribe(id) })
	}
}

func (q *Queue) unsubscribe(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, o := range q.observers {
		if o.id == id {
			q.observers = append(q.observers[:i:i], q.observers[i+1:]...)
			return
		}
	}
}

// Close cancels every pending auto-dismiss.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id := range q.timers {
		q.stopTimerLocked(id)
	}
}

func (q *Queue) dismiss(id, gen uint64) {
	q.mu.Lock()
	cur, ok := q.timers[id]
	if !ok || cur.gen != gen {
		q.mu.Unlock()
		return
	}
	delete(q.timers, id)
	q.mu.Unlock()

	q.Remove(id)
}

func (q *Queue) stopTimerLocked(id uint64) {
	if cur, ok := q.timers[id]; ok {
		cur.timer.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) notify(toasts []Toast) {
	q.mu.Lock()
	observers := q.observers
	q.mu.Unlock()

	for _, o := range observers {
		o.fn(append([]Toast(nil), toasts...))
	}
}
