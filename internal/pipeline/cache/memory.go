package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type memoryCache struct {
	ttl      time.Duration
	maxBytes int64

	mu         sync.Mutex
	entries    map[string]Entry
	totalBytes int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewMemory builds the in-process artifact cache. ttl applies when Store is
// called without one; maxBytes of zero disables the size budget.
func NewMemory(ttl time.Duration, maxBytes int64) ArtifactCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryCache{ttl: ttl, maxBytes: maxBytes, entries: make(map[string]Entry)}
}

func (c *memoryCache) Lookup(_ context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return Entry{}, false, nil
	}
	if time.Now().After(entry.ExpiresAt) {
		c.removeLocked(key)
		c.misses.Add(1)
		return Entry{}, false, nil
	}
	c.hits.Add(1)
	return cloneEntry(entry), true, nil
}

func (c *memoryCache) Store(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := time.Now().UTC()
	entry := Entry{
		Key:       key,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		SizeBytes: int64(len(payload)),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	c.entries[key] = entry
	c.totalBytes += entry.SizeBytes
	c.evictLocked()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	return nil
}

func (c *memoryCache) Size(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes, nil
}

func (c *memoryCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *memoryCache) Close(_ context.Context) error {
	return nil
}

func (c *memoryCache) removeLocked(key string) {
	if entry, ok := c.entries[key]; ok {
		c.totalBytes -= entry.SizeBytes
		delete(c.entries, key)
	}
}

// evictLocked removes entries in ascending CreatedAt order, ties broken by
// key lexical order, until the total size fits the budget again.
func (c *memoryCache) evictLocked() {
	if c.maxBytes <= 0 || c.totalBytes <= c.maxBytes {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.entries[keys[i]], c.entries[keys[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return keys[i] < keys[j]
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	for _, key := range keys {
		if c.totalBytes <= c.maxBytes {
			return
		}
		c.removeLocked(key)
		c.evictions.Add(1)
	}
}

func cloneEntry(in Entry) Entry {
	out := in
	out.Payload = append([]byte(nil), in.Payload...)
	return out
}
