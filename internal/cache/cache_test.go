package cache

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/omrelabs/omre/internal/shared"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewMemoryCache(10, time.Minute)

		c.Set(ctx, "quote:INFY", "1512.4")

		value, ok := c.Get(ctx, "quote:INFY")
		if !ok || value != "1512.4" {
			t.Errorf("expected cached value, got %q ok=%v", value, ok)
		}

		if _, ok := c.Get(ctx, "quote:TCS"); ok {
			t.Error("missing key should not be found")
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		c := NewMemoryCache(10, time.Minute)

		current := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return current }

		c.Set(ctx, "key", "value")

		current = current.Add(30 * time.Second)
		if _, ok := c.Get(ctx, "key"); !ok {
			t.Error("entry should survive half its ttl")
		}

		current = current.Add(31 * time.Second)
		if _, ok := c.Get(ctx, "key"); ok {
			t.Error("entry should expire after the ttl")
		}
		if c.Len() != 0 {
			t.Errorf("expired entry should be dropped on read, len=%d", c.Len())
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		c := NewMemoryCache(3, time.Minute)

		c.Set(ctx, "a", "1")
		c.Set(ctx, "b", "2")
		c.Set(ctx, "c", "3")

		// Touch "a" so "b" becomes the eviction candidate.
		c.Get(ctx, "a")
		c.Set(ctx, "d", "4")

		if _, ok := c.Get(ctx, "b"); ok {
			t.Error("least recently used entry should be evicted")
		}
		if _, ok := c.Get(ctx, "a"); !ok {
			t.Error("recently read entry should survive eviction")
		}
		if c.Len() != 3 {
			t.Errorf("cache should stay at its bound, len=%d", c.Len())
		}
	})

	t.Run("OverwriteRefreshes", func(t *testing.T) {
		c := NewMemoryCache(2, time.Minute)

		c.Set(ctx, "a", "1")
		c.Set(ctx, "b", "2")
		c.Set(ctx, "a", "updated")
		c.Set(ctx, "c", "3")

		if value, ok := c.Get(ctx, "a"); !ok || value != "updated" {
			t.Errorf("expected overwritten value to survive, got %q ok=%v", value, ok)
		}
		if _, ok := c.Get(ctx, "b"); ok {
			t.Error("stale entry should be evicted first")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewMemoryCache(10, time.Minute)

		c.Set(ctx, "key", "value")
		c.Delete(ctx, "key")

		if _, ok := c.Get(ctx, "key"); ok {
			t.Error("deleted key should be gone")
		}

		// Deleting a missing key is a no-op.
		c.Delete(ctx, "missing")
	})

	t.Run("Concurrent", func(t *testing.T) {
		c := NewMemoryCache(100, time.Minute)
		done := make(chan struct{})

		for i := 0; i < 4; i++ {
			go func(n int) {
				defer func() { done <- struct{}{} }()
				for j := 0; j < 100; j++ {
					key := fmt.Sprintf("key-%d-%d", n, j%10)
					c.Set(ctx, key, "v")
					c.Get(ctx, key)
				}
			}(i)
		}

		for i := 0; i < 4; i++ {
			<-done
		}
	})
}

func TestNew(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("DefaultsToMemory", func(t *testing.T) {
		c := New(shared.CacheConfig{TTLSeconds: 30, MaxEntries: 10}, logger)
		defer c.Close()

		if _, ok := c.(*MemoryCache); !ok {
			t.Errorf("expected memory cache, got %T", c)
		}
	})

	t.Run("UnreachableRedisFallsBack", func(t *testing.T) {
		c := New(shared.CacheConfig{RedisURL: "redis://127.0.0.1:1/0"}, logger)
		defer c.Close()

		if _, ok := c.(*MemoryCache); !ok {
			t.Errorf("expected fallback to memory cache, got %T", c)
		}
	})
}
