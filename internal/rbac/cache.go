package rbac

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheTTL is used when no TTL is configured.
	DefaultCacheTTL = 60 * time.Second
	// DefaultCacheSize bounds the number of identities held by a MemoryCache.
	DefaultCacheSize = 10000
)

// PermissionCache stores effective grants per identity.
//
// Generation identifies the current invalidation epoch. A filler reads it
// before resolving and hands it back to Set; Set drops the write when
// InvalidateAll has run in between.
type PermissionCache interface {
	Get(ctx context.Context, key string) ([]Grant, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, key string, gen int64, grants []Grant) error
	InvalidateAll(ctx context.Context) error
}

type memoryEntry struct {
	grants  []Grant
	expires time.Time
}

// MemoryCache is a process-local, size-bounded TTL cache. Freshness is judged
// against the configured clock; the LRU also ages entries out in wall time.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	size    int
	now     func() time.Time
	gen     int64
	entries *lru.LRU[string, memoryEntry]
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxEntries caps the number of cached identities.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.size = n
		}
	}
}

// NewMemoryCache constructs a cache. A non-positive ttl falls back to DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &MemoryCache{ttl: ttl, size: DefaultCacheSize, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = lru.NewLRU[string, memoryEntry](c.size, nil, ttl)
	return c
}

// Get returns a copy of the cached grants while the entry is fresh.
func (c *MemoryCache) Get(_ context.Context, key string) ([]Grant, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expires) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return cloneGrants(entry.grants), true, nil
}

// Generation reports the current invalidation epoch.
func (c *MemoryCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

// Set stores grants for ttl from now unless the cache was invalidated after gen
// was read.
func (c *MemoryCache) Set(_ context.Context, key string, gen int64, grants []Grant) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.entries.Add(key, memoryEntry{grants: cloneGrants(grants), expires: c.now().Add(c.ttl)})
	return nil
}

// InvalidateAll drops every entry and starts a new generation.
func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	c.gen++
	c.entries.Purge()
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func cloneGrants(in []Grant) []Grant {
	if in == nil {
		return nil
	}
	out := make([]Grant, len(in))
	copy(out, in)
	return out
}
