package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is used when neither the caller nor the manager configures one.
const DefaultTTL = time.Hour

// Manager is the cache service injected into the gateway.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDefaultTTL sets the TTL applied when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces the manager's time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new cache manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	m := &Manager{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Layer names the backing store.
func (m *Manager) Layer() string {
	return m.store.Layer()
}

// DefaultTTL returns the TTL used for Set calls without an explicit one.
func (m *Manager) DefaultTTL() time.Duration {
	return m.ttl
}

// Get retrieves cached data by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired;
// an expired entry is evicted by this call.
func (m *Manager) Get(ctx context.Context, key CacheKey) ([]byte, error) {
	cacheKey := key.String()

	entry, err := m.store.Get(ctx, cacheKey)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	now := m.now()
	if entry.IsExpiredAt(now) {
		if err := m.store.DeleteExpired(ctx, cacheKey, now); err != nil {
			CacheErrors.WithLabelValues("evict").Inc()
		} else {
			CacheEvictions.Inc()
		}
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(m.store.Layer()).Inc()
	return entry.Data, nil
}

// Set stores data under key with expires = now + ttl.
// A ttl <= 0 applies the manager's default TTL.
func (m *Manager) Set(ctx context.Context, key CacheKey, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}

	now := m.now()
	entry := &CacheEntry{
		Data:     data,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}

	if err := m.store.Set(ctx, key.String(), entry); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

// GetJSON retrieves and decodes a cached value into v.
func (m *Manager) GetJSON(ctx context.Context, key CacheKey, v any) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func (m *Manager) SetJSON(ctx context.Context, key CacheKey, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return m.Set(ctx, key, data, ttl)
}
