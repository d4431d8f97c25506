package mocks

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/phrazzld/taskboard-api/internal/cache"
)

// MemCache implements cache.Cache in memory. Setting Down makes every call
// behave as if the backend were unreachable.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time

	Down bool
	// SetErr, when non-nil, is returned by Set.
	SetErr error
	// Hits and Misses count Get outcomes.
	Hits   int
	Misses int
}

type memEntry struct {
	value   []byte
	expires time.Time
}

var _ cache.Cache = (*MemCache)(nil)

// NewMemCache creates an empty, available MemCache.
func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]memEntry), now: time.Now}
}

// Get implements cache.Cache.
func (c *MemCache) Get(_ context.Context, key string) ([]byte, cache.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return nil, cache.Unavailable, cache.ErrUnavailable
	}
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		c.Misses++
		return nil, cache.Miss, nil
	}
	c.Hits++
	return e.value, cache.Hit, nil
}

// Set implements cache.Cache.
func (c *MemCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return cache.ErrUnavailable
	}
	if c.SetErr != nil {
		return c.SetErr
	}
	c.entries[key] = memEntry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	return nil
}

// Delete implements cache.Cache.
func (c *MemCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return cache.ErrUnavailable
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// Keys implements cache.Cache.
func (c *MemCache) Keys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return nil, cache.ErrUnavailable
	}
	var out []string
	for k := range c.entries {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// Available implements cache.Cache.
func (c *MemCache) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.Down
}

// Has reports whether key holds a live entry.
func (c *MemCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now().Before(e.expires)
}

// TTL returns the remaining lifetime of key, or zero when absent.
func (c *MemCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0
	}
	return e.expires.Sub(c.now())
}

// Put stores a raw value, bypassing Down and SetErr.
func (c *MemCache) Put(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memEntry{value: value, expires: c.now().Add(ttl)}
}
