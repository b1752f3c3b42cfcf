package state

import (
	"sync"
	"sync/atomic"
)

// Keyed is a two-level store: outer key (server or session) -> id -> entity.
//
// Writers are serialised; every write publishes a new *Snapshot with an
// atomic swap, so readers never see a partially applied mutation and can
// detect change by comparing pointers. Observers run synchronously after
// publication and before the write returns. Writes that change nothing do
// not publish.
type Keyed[T any] struct {
	name string
	idOf func(T) string

	mu        sync.Mutex
	current   atomic.Pointer[Snapshot[T]]
	observers observers[*Snapshot[T]]
}

func NewKeyed[T any](name string, idOf func(T) string) *Keyed[T] {
	k := &Keyed[T]{name: name, idOf: idOf}
	k.current.Store(emptySnapshot[T]())

	return k
}

// Snapshot returns the current published state. It must not be modified.
func (k *Keyed[T]) Snapshot() *Snapshot[T] {
	return k.current.Load()
}

func (k *Keyed[T]) Scope(outer string) *Scope[T] {
	return k.Snapshot().Scope(outer)
}

func (k *Keyed[T]) Get(outer, id string) (T, bool) {
	return k.Scope(outer).Get(id)
}

// Subscribe registers fn for every published change and returns a func
// that removes it again.
func (k *Keyed[T]) Subscribe(fn Observer[*Snapshot[T]]) func() {
	return k.observers.add(fn)
}

// SetAll replaces the whole scope with items. Entities missing from items
// are dropped.
func (k *Keyed[T]) SetAll(outer string, items []T) {
	k.write(func(cur *Snapshot[T]) *Snapshot[T] {
		return cur.with(outer, scopeFrom(items, k.idOf))
	})
}

// Add inserts item, or fully replaces the entity with the same id.
func (k *Keyed[T]) Add(outer string, item T) {
	id := k.idOf(item)

	k.write(func(cur *Snapshot[T]) *Snapshot[T] {
		return cur.with(outer, cur.Scope(outer).with(id, &item))
	})
}

// Update shallow-merges patch onto the entity. Unknown ids and patches that
// do not decode onto T leave the state unchanged and return false.
func (k *Keyed[T]) Update(outer, id string, patch Patch) bool {
	return k.UpdateFunc(outer, id, func(cur T) (T, bool) {
		next, err := merge(cur, patch)
		if err != nil {
			logger.Debugf("%s: dropping patch for %s/%s: %s", k.name, outer, id, err)
			return cur, false
		}

		return next, true
	})
}

// UpdateFunc replaces the entity with the result of fn. fn receives a copy
// and reports whether the result should be published.
func (k *Keyed[T]) UpdateFunc(outer, id string, fn func(T) (T, bool)) bool {
	return k.write(func(cur *Snapshot[T]) *Snapshot[T] {
		sc := cur.Scope(outer)

		existing := sc.Ref(id)
		if existing == nil {
			return nil
		}

		next, ok := fn(*existing)
		if !ok {
			return nil
		}

		if k.idOf(next) != id {
			logger.Debugf("%s: refusing update that changes id %s to %s", k.name, id, k.idOf(next))
			return nil
		}

		return cur.with(outer, sc.with(id, &next))
	})
}

func (k *Keyed[T]) Remove(outer, id string) bool {
	return k.write(func(cur *Snapshot[T]) *Snapshot[T] {
		sc := cur.Scope(outer)
		if !sc.Has(id) {
			return nil
		}

		return cur.with(outer, sc.with(id, nil))
	})
}

// ClearScope drops the entire inner mapping of outer.
func (k *Keyed[T]) ClearScope(outer string) bool {
	return k.write(func(cur *Snapshot[T]) *Snapshot[T] {
		if _, ok := cur.scopes[outer]; !ok {
			return nil
		}

		return cur.with(outer, nil)
	})
}

// write applies fn to the current snapshot. A nil result means no change.
func (k *Keyed[T]) write(fn func(cur *Snapshot[T]) *Snapshot[T]) bool {
	k.mu.Lock()
	old := k.current.Load()
	next := fn(old)
	if next == nil {
		k.mu.Unlock()
		return false
	}
	k.current.Store(next)
	k.mu.Unlock()

	k.observers.notify(old, next)

	return true
}
