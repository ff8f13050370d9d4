package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-process Store. When MaxEntries is reached
// the oldest entry is evicted to make room.
type MemoryStore struct {
	// entries maps fingerprints to cached responses
	entries map[string]*Entry

	// maxEntries is the maximum number of entries (0 = unlimited)
	maxEntries int

	// mu protects concurrent access to the store
	mu sync.RWMutex
}

// NewMemoryStore creates a memory store. If maxEntries is 0 the store is
// unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
	}
}

// Get returns a deep copy of the entry for key, or nil.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return e.clone(), nil
}

// Set stores a deep copy of entry. ttl is ignored; staleness is checked on read.
func (s *MemoryStore) Set(ctx context.Context, key string, entry *Entry, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		// Only evict if the key doesn't already exist
		if _, exists := s.entries[key]; !exists {
			s.evictOldest()
		}
	}

	s.entries[key] = entry.clone()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep removes every entry created before the cutoff.
func (s *MemoryStore) Sweep(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.CreatedAt.Before(before) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current number of entries.
func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// Close drops every entry.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	return nil
}

// evictOldest evicts the entry with the earliest CreatedAt.
// Must be called with write lock held.
func (s *MemoryStore) evictOldest() {
	var oldestKey string
	var oldest time.Time

	for key, e := range s.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldest) {
			oldestKey = key
			oldest = e.CreatedAt
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
