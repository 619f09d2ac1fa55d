package cache

import (
	"context"
	"sync/atomic"
	"time"
)

type disabledCache struct {
	misses atomic.Uint64
}

// NewDisabled returns a cache that never stores anything. Used when caching is
// switched off so the stage executors keep a single code path.
func NewDisabled() ArtifactCache {
	return &disabledCache{}
}

func (c *disabledCache) Lookup(context.Context, string) (Entry, bool, error) {
	c.misses.Add(1)
	return Entry{}, false, nil
}

func (c *disabledCache) Store(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (c *disabledCache) Delete(context.Context, string) error { return nil }

func (c *disabledCache) Size(context.Context) (int64, error) { return 0, nil }

func (c *disabledCache) Stats() Stats {
	return Stats{Misses: c.misses.Load()}
}

func (c *disabledCache) Close(context.Context) error { return nil }
