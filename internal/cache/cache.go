package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cache provides in-memory caching with TTL and invalidation support.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	data      interface{}
	expiresAt time.Time
}

// New creates a new cache and starts the background sweep goroutine.
func New() *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
	}

	go c.sweep()

	return c
}

// Get retrieves a value from cache. Expired entries are evicted on access.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under write lock, another goroutine may have replaced the entry
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.data, true
}

// Set stores a value in cache with TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a key from cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// InvalidateByPrefix removes all keys with the given prefix.
func (c *Cache) InvalidateByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// InvalidateUserCache removes all cache entries for a specific user.
func (c *Cache) InvalidateUserCache(userID uuid.UUID) {
	c.InvalidateByPrefix("escrow_summary:" + userID.String())
	c.InvalidateByPrefix("rating_summary:" + userID.String())
}

// sweep removes expired entries periodically.
func (c *Cache) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

// Cache key generators
func MediaURLCacheKey(fileID uuid.UUID) string {
	return "media_url:" + fileID.String()
}

func EscrowSummaryCacheKey(userID uuid.UUID) string {
	return "escrow_summary:" + userID.String()
}

func RatingSummaryCacheKey(userID uuid.UUID) string {
	return "rating_summary:" + userID.String()
}

func DisputeStatsCacheKey() string {
	return "dispute_stats"
}

// GetOrSet retrieves a value from cache or computes it if not found.
func (c *Cache) GetOrSet(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fn func() (interface{}, error),
) (interface{}, error) {
	if value, found := c.Get(key); found {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return nil, err
	}

	c.Set(key, value, ttl)

	return value, nil
}
