package state

import "sync"

// Observer is called with the previous and the newly published state.
type Observer[S any] func(old, new S)

type observerEntry[S any] struct {
	id int
	fn Observer[S]
}

// observers is a registry of change callbacks, called in registration order.
type observers[S any] struct {
	mu      sync.Mutex
	next    int
	entries []observerEntry[S]
}

func (o *observers[S]) add(fn Observer[S]) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.next++
	id := o.next
	o.entries = append(o.entries, observerEntry[S]{id: id, fn: fn})

	var once sync.Once

	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers[S]) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := make([]observerEntry[S], 0, len(o.entries))
	for _, e := range o.entries {
		if e.id != id {
			entries = append(entries, e)
		}
	}
	o.entries = entries
}

func (o *observers[S]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.entries)
}

// notify runs every observer synchronously. The registry lock is not held
// while calling out, so observers may subscribe or unsubscribe.
func (o *observers[S]) notify(old, new S) {
	o.mu.Lock()
	entries := o.entries
	o.mu.Unlock()

	for _, e := range entries {
		e.fn(old, new)
	}
}
