package state

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Cloneable is the constraint for singleton values: a deep copy so callers
// can never reach the stored value through maps or slices.
type Cloneable[T any] interface {
	Clone() T
}

// SingletonListener observes one committed change of a singleton value.
type SingletonListener[T Cloneable[T]] func(prev, next T)

// Singleton holds a single document value (site settings, UI state) with
// the same mutate-then-notify discipline as the entity stores: one change
// at a time, listeners run before the next change is accepted, and
// mutating the singleton from inside a listener deadlocks.
type Singleton[T Cloneable[T]] struct {
	name string

	dispatchMu sync.Mutex

	mu       sync.RWMutex
	value    T
	revision uint64

	subMu     sync.RWMutex
	subs      map[uint64]SingletonListener[T]
	nextSubID uint64
}

// NewSingleton returns a singleton seeded with initial. The name appears in
// decode errors.
func NewSingleton[T Cloneable[T]](name string, initial T) *Singleton[T] {
	return &Singleton[T]{
		name:  name,
		value: initial.Clone(),
		subs:  make(map[uint64]SingletonListener[T]),
	}
}

// Get returns a copy of the current value.
func (s *Singleton[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.Clone()
}

// Set replaces the value and notifies subscribers.
func (s *Singleton[T]) Set(v T) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	prev := s.value
	s.value = v.Clone()
	s.revision++
	s.mu.Unlock()

	s.notify(prev, v.Clone())
}

// Patch JSON-merges partial onto a copy of the current value, stores the
// result, and notifies subscribers. Fields absent from partial keep their
// current values.
func (s *Singleton[T]) Patch(partial json.RawMessage) (T, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.RLock()
	prev := s.value
	s.mu.RUnlock()

	next := prev.Clone()
	if err := json.Unmarshal(partial, &next); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s patch: %w", s.name, err)
	}

	s.mu.Lock()
	s.value = next.Clone()
	s.revision++
	s.mu.Unlock()

	s.notify(prev, next.Clone())
	return next, nil
}

// Revision increases by one per committed Set or Patch.
func (s *Singleton[T]) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe registers fn for every committed change. The returned func
// removes the subscription; calling it more than once is safe.
func (s *Singleton[T]) Subscribe(fn SingletonListener[T]) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Singleton[T]) notify(prev, next T) {
	s.subMu.RLock()
	listeners := make([]SingletonListener[T], 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
}
