// Package cache provides the quote cache behind the dashboard endpoints.
//
// Two implementations exist: [MemoryCache], a bounded TTL cache with LRU
// eviction, and [RedisCache] over go-redis for deployments that share a
// Redis instance. [New] picks one from configuration and degrades to the
// in-process cache when Redis is unreachable, so a missing REDIS_URL never
// blocks startup.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/shared"
)

// Cache is a string key-value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Delete(ctx context.Context, key string)
	Close() error
}

const (
	DefaultTTL        = 60 * time.Second
	DefaultMaxEntries = 1000
)

// New builds a cache from configuration. An empty redis URL selects the
// in-process cache; a bad URL or unreachable server logs a warning and
// falls back rather than failing.
func New(cfg shared.CacheConfig, logger *log.Logger) Cache {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	if cfg.RedisURL != "" {
		redisCache, err := NewRedisCache(cfg.RedisURL, ttl)
		if err == nil {
			logger.Info("cache: using redis", "ttl", ttl)
			return redisCache
		}
		logger.Warn("cache: redis unavailable, using in-process cache", "error", err)
	}

	return NewMemoryCache(maxEntries, ttl)
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// MemoryCache is a bounded TTL cache. When full, the least recently used
// entry is evicted.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryCache creates a [MemoryCache] with the given bounds.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get retrieves a value and refreshes its recency.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return "", false
	}

	entry := element.Value.(*memoryEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(element)
		delete(c.entries, key)
		return "", false
	}

	c.order.MoveToBack(element)
	return entry.value, true
}

// Set stores a value, evicting the oldest entry when the cache is full.
func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		entry := element.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToBack(element)
		return
	}

	if c.order.Len() >= c.maxEntries {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryEntry).key)
		}
	}

	c.entries[key] = c.order.PushBack(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.order.Remove(element)
		delete(c.entries, key)
	}
}

// Len returns the number of live entries, counting expired ones until
// they are touched.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) Close() error { return nil }
