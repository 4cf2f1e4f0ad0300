package tenant

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a cached membership set may be served
// before it is refetched.
const DefaultCacheTTL = 5 * time.Minute

// MembershipCache stores per-user tenant membership sets with a TTL.
//
// Get distinguishes a cache miss (false) from a cached empty set (true with
// a zero-length slice): a user with no tenants is still a valid cached
// answer.
type MembershipCache interface {
	Get(ctx context.Context, userID string) ([]Summary, bool, error)
	Set(ctx context.Context, userID string, tenants []Summary) error
	Invalidate(ctx context.Context, userID string) error
}

type memoryEntry struct {
	tenants   []Summary
	expiresAt time.Time
}

// MemoryCache is an in-process MembershipCache. Entries expire lazily on
// read; there is no background sweeper.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithClock overrides the cache's time source.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache builds an in-process cache. A non-positive ttl falls back
// to DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration, opts ...MemoryCacheOption) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached membership set for userID, if present and fresh.
func (c *MemoryCache) Get(_ context.Context, userID string) ([]Summary, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, ok := c.entries[userID]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, userID)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.tenants, true, nil
}

// Set stores the membership set for userID for the cache's TTL.
func (c *MemoryCache) Set(_ context.Context, userID string, tenants []Summary) error {
	c.mu.Lock()
	c.entries[userID] = memoryEntry{
		tenants:   tenants,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

// Invalidate drops the entry for userID if one exists.
func (c *MemoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

// Len reports the number of entries currently held, including ones that
// have expired but not yet been dropped.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ MembershipCache = (*MemoryCache)(nil)
