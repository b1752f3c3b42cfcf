package state

import (
	"sync"
	"sync/atomic"
)

// Table is the single-level sibling of Keyed: id -> entity, with the same
// copy-on-write publication and observer contract.
type Table[T any] struct {
	name string
	idOf func(T) string

	mu        sync.Mutex
	current   atomic.Pointer[Scope[T]]
	observers observers[*Scope[T]]
}

func NewTable[T any](name string, idOf func(T) string) *Table[T] {
	t := &Table[T]{name: name, idOf: idOf}
	t.current.Store(newScope[T](0))

	return t
}

func (t *Table[T]) Snapshot() *Scope[T] {
	return t.current.Load()
}

func (t *Table[T]) Get(id string) (T, bool) {
	return t.Snapshot().Get(id)
}

func (t *Table[T]) Subscribe(fn Observer[*Scope[T]]) func() {
	return t.observers.add(fn)
}

func (t *Table[T]) SetAll(items []T) {
	t.write(func(*Scope[T]) *Scope[T] {
		return scopeFrom(items, t.idOf)
	})
}

func (t *Table[T]) Add(item T) {
	t.Apply([]T{item}, nil)
}

// Apply upserts puts and removes deletes in one published transition.
// Deletes of unknown ids are ignored; an Apply that changes nothing does not
// publish.
func (t *Table[T]) Apply(puts []T, deletes []string) bool {
	return t.write(func(cur *Scope[T]) *Scope[T] {
		changed := false
		next := newScope[T](cur.Len() + len(puts))
		for k, v := range cur.entities {
			next.entities[k] = v
		}

		for _, item := range puts {
			item := item
			next.entities[t.idOf(item)] = &item
			changed = true
		}

		for _, id := range deletes {
			if _, ok := next.entities[id]; ok {
				delete(next.entities, id)
				changed = true
			}
		}

		if !changed {
			return nil
		}

		return next
	})
}

func (t *Table[T]) Update(id string, patch Patch) bool {
	return t.UpdateFunc(id, func(cur T) (T, bool) {
		next, err := merge(cur, patch)
		if err != nil {
			logger.Debugf("%s: dropping patch for %s: %s", t.name, id, err)
			return cur, false
		}

		return next, true
	})
}

func (t *Table[T]) UpdateFunc(id string, fn func(T) (T, bool)) bool {
	return t.write(func(cur *Scope[T]) *Scope[T] {
		existing := cur.Ref(id)
		if existing == nil {
			return nil
		}

		next, ok := fn(*existing)
		if !ok || t.idOf(next) != id {
			return nil
		}

		return cur.with(id, &next)
	})
}

func (t *Table[T]) Remove(id string) bool {
	return t.Apply(nil, []string{id})
}

// Clear drops every entity.
func (t *Table[T]) Clear() bool {
	return t.write(func(cur *Scope[T]) *Scope[T] {
		if cur.Len() == 0 {
			return nil
		}

		return newScope[T](0)
	})
}

func (t *Table[T]) write(fn func(cur *Scope[T]) *Scope[T]) bool {
	t.mu.Lock()
	old := t.current.Load()
	next := fn(old)
	if next == nil {
		t.mu.Unlock()
		return false
	}
	t.current.Store(next)
	t.mu.Unlock()

	t.observers.notify(old, next)

	return true
}
