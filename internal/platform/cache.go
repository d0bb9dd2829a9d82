package platform

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTTL is how long object lists and describes stay fresh.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// CachedMetadata caches ListObjects and DescribeObject results per key.
// Entries expire after TTL; nothing refreshes in the background.
type CachedMetadata struct {
	Metadata
	TTL    time.Duration
	Now    func() time.Time
	Logger *zap.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedMetadata(inner Metadata, ttl time.Duration) *CachedMetadata {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedMetadata{Metadata: inner, TTL: ttl, Now: time.Now, Logger: zap.NewNop(), entries: map[string]cacheEntry{}}
}

func (c *CachedMetadata) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *CachedMetadata) put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]cacheEntry{}
	}
	c.entries[key] = cacheEntry{value: v, expiresAt: c.Now().Add(c.TTL)}
}

// Objects lists objects, bypassing the cache when forceRefresh is set.
func (c *CachedMetadata) Objects(ctx context.Context, forceRefresh bool) ([]Object, error) {
	const key = "objects"
	if !forceRefresh {
		if v, ok := c.get(key); ok {
			return v.([]Object), nil
		}
	}
	objs, err := c.Metadata.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	c.put(key, objs)
	return objs, nil
}

// Describe describes one object, bypassing the cache when forceRefresh is set.
func (c *CachedMetadata) Describe(ctx context.Context, name string, forceRefresh bool) (*Object, error) {
	key := "fields_" + name
	if !forceRefresh {
		if v, ok := c.get(key); ok {
			return v.(*Object), nil
		}
	}
	obj, err := c.Metadata.DescribeObject(ctx, name)
	if err != nil {
		return nil, err
	}
	c.put(key, obj)
	return obj, nil
}

func (c *CachedMetadata) ListObjects(ctx context.Context) ([]Object, error) {
	return c.Objects(ctx, false)
}

func (c *CachedMetadata) DescribeObject(ctx context.Context, name string) (*Object, error) {
	return c.Describe(ctx, name, false)
}

// Clear drops every cached entry.
func (c *CachedMetadata) Clear() {
	c.mu.Lock()
	c.entries = map[string]cacheEntry{}
	c.mu.Unlock()
	c.Logger.Info("metadata cache cleared")
}
