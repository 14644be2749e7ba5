package store

import (
	"sync"
	"sync/atomic"
)

// changeBuffer sizes the change feed. A full feed drops the notification;
// the cache itself is never stale, so a consumer recovers via Snapshot.
const changeBuffer = 64

// MemoryStore implements Store using in-memory storage.
// Useful for testing and single-process scenarios; the test side mutates it
// through Put and Delete to simulate external configuration changes.
type MemoryStore struct {
	mu       sync.RWMutex
	ports    map[string]Port
	revision uint64
	changes  chan Change
	closed   atomic.Bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ports:   make(map[string]Port),
		changes: make(chan Change, changeBuffer),
	}
}

// Run is a no-op for the in-memory store; mutations land synchronously.
func (s *MemoryStore) Run() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Snapshot returns a copy of the current cache.
func (s *MemoryStore) Snapshot() map[string]Port {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Port, len(s.ports))
	for k, v := range s.ports {
		out[k] = v
	}
	return out
}

// Changes returns the change feed.
func (s *MemoryStore) Changes() <-chan Change {
	return s.changes
}

// Put creates or updates a port record and notifies the feed.
func (s *MemoryStore) Put(key string, port Port) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	s.ports[key] = port
	s.revision++
	s.notify(Change{Key: key, Port: &port, Operation: OpPut, Revision: s.revision})
	return nil
}

// Delete removes a port record and notifies the feed.
// Returns ErrNotFound if the key does not exist.
func (s *MemoryStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	if _, ok := s.ports[key]; !ok {
		return ErrNotFound
	}
	delete(s.ports, key)
	s.revision++
	s.notify(Change{Key: key, Operation: OpDelete, Revision: s.revision})
	return nil
}

// notify delivers a change without blocking the mutator.
// Callers hold s.mu, which serializes sends against Close.
func (s *MemoryStore) notify(c Change) {
	select {
	case s.changes <- c:
	default:
		// Feed full; consumer recovers via Snapshot.
	}
}

// Close shuts down the store and closes the change feed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	close(s.changes)
	return nil
}
