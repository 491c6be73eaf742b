// Package ttlstore provides a small expiring key-value store. It backs the
// public calendar share tokens and the OAuth state handoff. The in-memory
// implementation is process-local: restarting the server invalidates every
// outstanding entry, and sharing does not survive horizontal scaling. Callers
// receive the store as a dependency so a persistent implementation can be
// swapped in without touching handlers.
package ttlstore

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for keys that were never stored or were deleted
	ErrNotFound = errors.New("ttlstore: not found")
	// ErrExpired is returned once for a stale key; the entry is deleted eagerly
	ErrExpired = errors.New("ttlstore: expired")
)

// Entry is a stored value with its expiry instant
type Entry struct {
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Store is an expiring key-value store
type Store interface {
	Put(key, value string, ttl time.Duration) Entry
	Get(key string) (Entry, error)
	Delete(key string)
	Len() int
}

// MemoryStore is a mutex-guarded in-memory Store
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry

	// now is swappable for tests
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Put stores value under key for ttl and returns the stored entry
func (s *MemoryStore) Put(key, value string, ttl time.Duration) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := Entry{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	s.entries[key] = e
	return e
}

// Get returns the entry for key. A key at or past its expiry instant yields
// ErrExpired exactly once; the entry is removed and later lookups yield
// ErrNotFound.
func (s *MemoryStore) Get(key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if !s.now().Before(e.ExpiresAt) {
		delete(s.entries, key)
		return Entry{}, ErrExpired
	}
	return e, nil
}

// Delete removes key if present
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len returns the number of stored entries, including not-yet-collected
// expired ones
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
