// Package store implements the ordered entity collections backing the website
// document. Every editable collection (pages, elements, assets, styles, fonts)
// gets identical create/update/delete/reorder semantics and the same
// change-notification guarantees from a single generic container.
//
// Snapshot discipline: the store never mutates a published slice. Each
// committed mutation builds a fresh backing array, so a snapshot obtained via
// List remains valid forever and two snapshots are reference-equal exactly
// when no mutation happened between them.
//
// Locking discipline: a mutation lock serializes mutate+notify, so one
// mutation fully completes (subscribers included) before the next is
// accepted. Subscribers may read the store (List, Get, Revision) but must not
// mutate it; a mutation from inside a subscriber deadlocks.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Entity is the constraint for stored values. Implementations are value types
// whose Clone returns a deep copy safe to hand to callers.
type Entity[T any] interface {
	EntityID() string
	WithEntityID(id string) T
	Clone() T
}

// Config controls per-collection store behavior.
type Config struct {
	// Collection names the store in errors and notifications.
	Collection string
	// AllowClientIDs keeps caller-supplied ids on Create. When false, any
	// supplied id is ignored and a fresh one is assigned.
	AllowClientIDs bool
	// NewID overrides id generation (tests). Defaults to uuid.NewString.
	NewID func() string
}

// Listener observes committed mutations. prev is the pre-mutation snapshot
// and next the post-mutation snapshot; they are always distinct slices.
type Listener[T Entity[T]] func(prev, next []T)

// Store is an ordered, id-indexed entity collection.
type Store[T Entity[T]] struct {
	collection     string
	allowClientIDs bool
	newID          func() string

	// dispatchMu serializes mutate+notify; it is intentionally held while
	// subscribers run so they observe a settled store.
	dispatchMu sync.Mutex

	mu       sync.RWMutex
	items    []T
	index    map[string]int
	revision uint64

	subMu     sync.RWMutex
	subs      map[uint64]Listener[T]
	nextSubID uint64
}

// New creates an empty store for one collection.
func New[T Entity[T]](cfg Config) *Store[T] {
	if cfg.Collection == "" {
		cfg.Collection = "entities"
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Store[T]{
		collection:     cfg.Collection,
		allowClientIDs: cfg.AllowClientIDs,
		newID:          cfg.NewID,
		items:          make([]T, 0),
		index:          make(map[string]int),
		subs:           make(map[uint64]Listener[T]),
	}
}

// Collection returns the collection name the store was configured with.
func (s *Store[T]) Collection() string {
	return s.collection
}

// Create appends entity at the end of the collection and returns the stored
// value. Id handling depends on AllowClientIDs; see Config.
func (s *Store[T]) Create(entity T) (T, error) {
	var zero T
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	stored := entity.Clone()
	id := stored.EntityID()
	switch {
	case !s.allowClientIDs || id == "":
		stored = stored.WithEntityID(s.newID())
	default:
		s.mu.RLock()
		_, exists := s.index[id]
		s.mu.RUnlock()
		if exists {
			return zero, &DuplicateIDError{Collection: s.collection, ID: id}
		}
	}

	prev := s.snapshot()
	next := make([]T, len(prev)+1)
	copy(next, prev)
	next[len(prev)] = stored

	s.commit(next)
	s.notify(prev, next)
	return stored.Clone(), nil
}

// Update replaces the entity with id by the result of apply. apply receives a
// deep copy; the entity's position is preserved and its id is immutable even
// if apply returns a different one.
func (s *Store[T]) Update(id string, apply func(T) T) (T, error) {
	var zero T
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.snapshot()
	pos, ok := s.position(id)
	if !ok {
		return zero, &NotFoundError{Collection: s.collection, ID: id}
	}

	updated := apply(prev[pos].Clone()).WithEntityID(id)

	next := make([]T, len(prev))
	copy(next, prev)
	next[pos] = updated

	s.commit(next)
	s.notify(prev, next)
	return updated.Clone(), nil
}

// Patch merges the JSON object partial onto a copy of the entity with id.
// Only fields present in partial are touched; the id is immutable.
func (s *Store[T]) Patch(id string, partial json.RawMessage) (T, error) {
	var zero T
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.snapshot()
	pos, ok := s.position(id)
	if !ok {
		return zero, &NotFoundError{Collection: s.collection, ID: id}
	}

	patched := prev[pos].Clone()
	if err := json.Unmarshal(partial, &patched); err != nil {
		return zero, fmt.Errorf("decode %s patch: %w", s.collection, err)
	}
	patched = patched.WithEntityID(id)

	next := make([]T, len(prev))
	copy(next, prev)
	next[pos] = patched

	s.commit(next)
	s.notify(prev, next)
	return patched.Clone(), nil
}

// Delete removes the entity with id. Deleting an absent id fails with
// NotFoundError; callers wanting idempotence must check first.
func (s *Store[T]) Delete(id string) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.snapshot()
	pos, ok := s.position(id)
	if !ok {
		return &NotFoundError{Collection: s.collection, ID: id}
	}

	next := make([]T, 0, len(prev)-1)
	next = append(next, prev[:pos]...)
	next = append(next, prev[pos+1:]...)

	s.commit(next)
	s.notify(prev, next)
	return nil
}

// Move reorders the entity with id to toIndex. Out-of-range indices clamp to
// the collection ends. A move that leaves the order unchanged is a no-op and
// does not notify.
func (s *Store[T]) Move(id string, toIndex int) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.snapshot()
	pos, ok := s.position(id)
	if !ok {
		return &NotFoundError{Collection: s.collection, ID: id}
	}

	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(prev)-1 {
		toIndex = len(prev) - 1
	}
	if toIndex == pos {
		return nil
	}

	next := make([]T, 0, len(prev))
	next = append(next, prev[:pos]...)
	next = append(next, prev[pos+1:]...)
	next = append(next[:toIndex], append([]T{prev[pos]}, next[toIndex:]...)...)

	s.commit(next)
	s.notify(prev, next)
	return nil
}

// Get returns a deep copy of the entity with id.
func (s *Store[T]) Get(id string) (T, error) {
	var zero T
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return zero, &NotFoundError{Collection: s.collection, ID: id}
	}
	return s.items[pos].Clone(), nil
}

// List returns the current snapshot. The returned slice is shared with future
// readers and must be treated as immutable.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

// Len returns the number of entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Revision increases by one for every committed mutation and never otherwise.
func (s *Store[T]) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe registers fn for committed mutations of this collection only.
// The returned function removes the subscription; calling it more than once
// is safe.
func (s *Store[T]) Subscribe(fn Listener[T]) func() {
	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
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

// Replace swaps the entire collection content in one committed mutation.
// Used when loading a document from storage. Entities keep their ids; any
// entity without an id gets one assigned.
func (s *Store[T]) Replace(entities []T) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.snapshot()
	next := make([]T, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for i, e := range entities {
		e = e.Clone()
		if e.EntityID() == "" {
			e = e.WithEntityID(s.newID())
		}
		if _, dup := seen[e.EntityID()]; dup {
			return &DuplicateIDError{Collection: s.collection, ID: e.EntityID()}
		}
		seen[e.EntityID()] = struct{}{}
		next[i] = e
	}

	s.commit(next)
	s.notify(prev, next)
	return nil
}

// snapshot returns the current backing slice. Callers must hold dispatchMu
// when they intend to derive the next snapshot from it.
func (s *Store[T]) snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

func (s *Store[T]) position(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	return pos, ok
}

// commit installs the next snapshot and bumps the revision.
func (s *Store[T]) commit(next []T) {
	index := make(map[string]int, len(next))
	for i, e := range next {
		index[e.EntityID()] = i
	}
	s.mu.Lock()
	s.items = next
	s.index = index
	s.revision++
	s.mu.Unlock()
}

// notify runs subscribers synchronously under dispatchMu. The subscriber set
// is copied first so subscribers may subscribe/unsubscribe reentrantly.
func (s *Store[T]) notify(prev, next []T) {
	s.subMu.RLock()
	listeners := make([]Listener[T], 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
}
