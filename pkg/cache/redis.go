package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis with a native TTL.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves an entry by key.
func (s *RedisStore) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return readEntry(ctx, s.redis, key)
}

// Set stores entry with a Redis TTL derived from its lifetime.
// Entries with no remaining lifetime are not written.
func (s *RedisStore) Set(ctx context.Context, key string, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.Expires.Sub(entry.CachedAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeleteExpired removes key inside a WATCH transaction so a concurrent
// writer wins over the eviction.
func (s *RedisStore) DeleteExpired(ctx context.Context, key string, now time.Time) error {
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		entry, err := readEntry(ctx, tx, key)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		if !entry.IsExpiredAt(now) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Layer implements Store.
func (s *RedisStore) Layer() string {
	return "redis"
}

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readEntry(ctx context.Context, cmd stringGetter, key string) (*CacheEntry, error) {
	data, err := cmd.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

var _ Store = (*RedisStore)(nil)
