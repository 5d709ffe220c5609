package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_GetSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss on empty store, got %v", err)
	}

	entry := &CacheEntry{Data: []byte("v"), Expires: time.Now().Add(time.Minute)}
	if err := store.Set(ctx, "k", entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != "v" {
		t.Errorf("Data = %s, want v", got.Data)
	}
	if store.Layer() != "memory" {
		t.Errorf("Layer() = %q", store.Layer())
	}
}

func TestMemoryStore_DeleteExpired_KeepsFreshEntry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// A reader saw an expired entry, then a writer replaced it before
	// the reader's eviction ran.
	_ = store.Set(ctx, "k", &CacheEntry{Data: []byte("fresh"), Expires: now.Add(time.Hour)})

	if err := store.DeleteExpired(ctx, "k", now); err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Errorf("fresh entry was evicted: %v", err)
	}
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Set(ctx, "k", &CacheEntry{Data: []byte("stale"), Expires: now.Add(-time.Second)})

	if err := store.DeleteExpired(ctx, "k", now); err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}

	// Missing keys are a no-op.
	if err := store.DeleteExpired(ctx, "absent", now); err != nil {
		t.Errorf("DeleteExpired on missing key failed: %v", err)
	}
}
