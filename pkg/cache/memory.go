package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Nothing survives process restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*CacheEntry),
	}
}

// Get returns the stored entry or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, key string) (*CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Set stores entry under key.
func (s *MemoryStore) Set(_ context.Context, key string, entry *CacheEntry) error {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// DeleteExpired evicts key if the entry currently stored is expired at now.
func (s *MemoryStore) DeleteExpired(_ context.Context, key string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: another handler may have stored a
	// fresh entry since the caller's read.
	if entry, ok := s.entries[key]; ok && entry.IsExpiredAt(now) {
		delete(s.entries, key)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Layer implements Store.
func (s *MemoryStore) Layer() string {
	return "memory"
}

var _ Store = (*MemoryStore)(nil)
