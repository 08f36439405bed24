package pending

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfRange is returned when a removal position is not a current index.
var ErrOutOfRange = errors.New("position out of range")

// ErrNotFound is returned when an item ID is not staged.
var ErrNotFound = errors.New("item not staged")

// Set is an insertion-ordered collection of staged items. Duplicates are
// allowed. The zero value is not usable; call NewSet.
type Set struct {
	mu        sync.RWMutex
	items     []Item
	observers []func()
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{}
}

// OnChange registers fn to be called after every mutation. Observers run
// outside the set's lock, in registration order.
func (s *Set) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Add appends items in order and returns them as staged, with IDs and media
// kinds assigned.
func (s *Set) Add(items ...Item) []Item {
	staged := make([]Item, len(items))
	for i, it := range items {
		staged[i] = stage(it)
	}

	s.mu.Lock()
	s.items = append(s.items, staged...)
	s.mu.Unlock()

	s.notify()
	return staged
}

// RemoveAt removes the item at position and shifts later items down by one.
func (s *Set) RemoveAt(position int) (Item, error) {
	s.mu.Lock()
	if position < 0 || position >= len(s.items) {
		n := len(s.items)
		s.mu.Unlock()
		return Item{}, fmt.Errorf("remove at %d of %d: %w", position, n, ErrOutOfRange)
	}
	removed := s.removeLocked(position)
	s.mu.Unlock()

	s.notify()
	return removed, nil
}

// Remove removes the item with the given ID wherever it currently sits.
func (s *Set) Remove(id string) (Item, error) {
	s.mu.Lock()
	pos := s.indexLocked(id)
	if pos < 0 {
		s.mu.Unlock()
		return Item{}, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	removed := s.removeLocked(pos)
	s.mu.Unlock()

	s.notify()
	return removed, nil
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.notify()
}

// Size returns the number of staged items.
func (s *Set) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of the staged items in order.
func (s *Set) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Snapshot returns the contents at call time. Later mutations of the set do
// not affect the returned slice.
func (s *Set) Snapshot() []Item {
	return s.Items()
}

// IndexOf returns the current position of id, or -1.
func (s *Set) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id)
}

// Get returns the staged item with the given ID.
func (s *Set) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos := s.indexLocked(id); pos >= 0 {
		return s.items[pos], true
	}
	return Item{}, false
}

func (s *Set) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Set) removeLocked(pos int) Item {
	removed := s.items[pos]
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	return removed
}

func (s *Set) notify() {
	s.mu.RLock()
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn()
	}
}
