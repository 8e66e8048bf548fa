// Package memory provides a generic thread-safe in-memory key-value store
// used by repository adapters.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var (
	// ErrNotFound is returned by Store when the requested key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned by Insert when the key is already present.
	ErrExists = errors.New("already exists")
)

// Store is a generic thread-safe in-memory key-value store that remembers
// insertion order. With a positive limit it evicts the oldest evictable
// entries.
type Store[V any] struct {
	mu        sync.RWMutex
	data      map[string]V
	order     []string // insertion order, oldest first
	keyFunc   func(V) string
	limit     int
	evictable func(V) bool
}

// New creates an unbounded Store with a key extractor function.
func New[V any](keyFunc func(V) string) *Store[V] {
	return NewBounded(keyFunc, 0)
}

// NewBounded creates a Store that keeps at most limit entries, evicting in
// FIFO order. limit <= 0 means unbounded.
func NewBounded[V any](keyFunc func(V) string, limit int) *Store[V] {
	return NewBoundedFunc(keyFunc, limit, nil)
}

// NewBoundedFunc is like NewBounded but only evicts values for which
// evictable returns true. Pinned values let the store exceed limit; the
// overflow is trimmed once they become evictable. A nil evictable makes
// every value evictable.
func NewBoundedFunc[V any](keyFunc func(V) string, limit int, evictable func(V) bool) *Store[V] {
	if evictable == nil {
		evictable = func(V) bool { return true }
	}
	return &Store[V]{
		data:      make(map[string]V),
		keyFunc:   keyFunc,
		limit:     limit,
		evictable: evictable,
	}
}

// Insert adds a new value. It returns ErrExists if the key is present.
func (s *Store[V]) Insert(_ context.Context, v V) error {
	key := s.keyFunc(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return ErrExists
	}
	s.insertLocked(key, v)
	return nil
}

// Replace overwrites an existing value in place, keeping its position.
func (s *Store[V]) Replace(_ context.Context, v V) error {
	key := s.keyFunc(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	s.data[key] = v
	s.trimLocked()
	return nil
}

// Set inserts or replaces the value.
func (s *Store[V]) Set(_ context.Context, v V) error {
	key := s.keyFunc(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		s.data[key] = v
		s.trimLocked()
		return nil
	}
	s.insertLocked(key, v)
	return nil
}

// Get returns the value for key, or ErrNotFound if absent.
func (s *Store[V]) Get(_ context.Context, key string) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Delete removes the value for key. Returns ErrNotFound if absent.
func (s *Store[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	s.removeOrder(func(k string) bool { return k == key })
	return nil
}

// DeleteWhere removes every value matching pred and returns how many.
func (s *Store[V]) DeleteWhere(_ context.Context, pred func(V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.data {
		if pred(v) {
			delete(s.data, k)
			n++
		}
	}
	if n > 0 {
		s.removeOrder(func(k string) bool {
			_, ok := s.data[k]
			return !ok
		})
	}
	return n
}

// All returns all stored values, oldest first.
func (s *Store[V]) All(ctx context.Context) ([]V, error) {
	return s.Filter(ctx, func(V) bool { return true })
}

// Filter returns all values for which pred returns true, oldest first.
func (s *Store[V]) Filter(_ context.Context, pred func(V) bool) ([]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []V
	for _, k := range s.order {
		if v := s.data[k]; pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Has reports whether the key exists.
func (s *Store[V]) Has(_ context.Context, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of stored values.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store[V]) insertLocked(key string, v V) {
	s.data[key] = v
	s.order = append(s.order, key)
	s.trimLocked()
}

// trimLocked evicts the oldest evictable values until the store is within
// its limit or only pinned values are left over. Caller holds mu.
func (s *Store[V]) trimLocked() {
	if s.limit <= 0 {
		return
	}
	for len(s.order) > s.limit {
		i := slices.IndexFunc(s.order, func(k string) bool { return s.evictable(s.data[k]) })
		if i < 0 {
			return
		}
		delete(s.data, s.order[i])
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// removeOrder drops keys matching drop from the order slice. Caller holds mu.
func (s *Store[V]) removeOrder(drop func(string) bool) {
	kept := s.order[:0]
	for _, k := range s.order {
		if !drop(k) {
			kept = append(kept, k)
		}
	}
	s.order = kept
}
