package state

import "sort"

// Scope is an immutable id -> entity mapping. A published Scope is never
// modified; writers build a new one. Entities untouched by a write keep
// their pointer identity across Scopes.
type Scope[T any] struct {
	entities map[string]*T
}

func newScope[T any](size int) *Scope[T] {
	return &Scope[T]{entities: make(map[string]*T, size)}
}

// Get returns a copy of the entity with the given id.
func (s *Scope[T]) Get(id string) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}

	e, ok := s.entities[id]
	if !ok {
		return zero, false
	}

	return *e, true
}

// Ref returns the stored entity pointer for identity comparisons.
// Callers must not write through it.
func (s *Scope[T]) Ref(id string) *T {
	if s == nil {
		return nil
	}

	return s.entities[id]
}

func (s *Scope[T]) Has(id string) bool {
	if s == nil {
		return false
	}

	_, ok := s.entities[id]

	return ok
}

func (s *Scope[T]) Len() int {
	if s == nil {
		return 0
	}

	return len(s.entities)
}

// IDs returns the sorted entity ids.
func (s *Scope[T]) IDs() []string {
	if s == nil {
		return nil
	}

	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Values returns copies of all entities ordered by id.
func (s *Scope[T]) Values() []T {
	ids := s.IDs()
	values := make([]T, 0, len(ids))
	for _, id := range ids {
		values = append(values, *s.entities[id])
	}

	return values
}

// with returns a copy of s where id maps to e, or is removed when e is nil.
func (s *Scope[T]) with(id string, e *T) *Scope[T] {
	next := newScope[T](s.Len() + 1)
	if s != nil {
		for k, v := range s.entities {
			next.entities[k] = v
		}
	}

	if e == nil {
		delete(next.entities, id)
	} else {
		next.entities[id] = e
	}

	return next
}

func scopeFrom[T any](items []T, idOf func(T) string) *Scope[T] {
	s := newScope[T](len(items))
	for _, item := range items {
		item := item
		s.entities[idOf(item)] = &item
	}

	return s
}

// Snapshot is an immutable outer key -> Scope mapping.
type Snapshot[T any] struct {
	scopes map[string]*Scope[T]
}

func emptySnapshot[T any]() *Snapshot[T] {
	return &Snapshot[T]{scopes: map[string]*Scope[T]{}}
}

// Scope returns the inner mapping for key. The result is nil when the key
// is unknown; all Scope reads treat nil as empty.
func (s *Snapshot[T]) Scope(key string) *Scope[T] {
	if s == nil {
		return nil
	}

	return s.scopes[key]
}

// Keys returns the sorted outer keys.
func (s *Snapshot[T]) Keys() []string {
	if s == nil {
		return nil
	}

	keys := make([]string, 0, len(s.scopes))
	for k := range s.scopes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}

	return len(s.scopes)
}

func (s *Snapshot[T]) with(key string, sc *Scope[T]) *Snapshot[T] {
	next := &Snapshot[T]{scopes: make(map[string]*Scope[T], len(s.scopes)+1)}
	for k, v := range s.scopes {
		next.scopes[k] = v
	}

	if sc == nil {
		delete(next.scopes, key)
	} else {
		next.scopes[key] = sc
	}

	return next
}
