// Package cache provides the shared artifact store consulted by every stage
// executor before it reaches for a provider. Entries are bounded by TTL and a
// total size budget; eviction removes the oldest entries first.
package cache

import (
	"context"
	"time"
)

// Entry is an immutable cached artifact. Stage executors only read or insert
// entries; they never mutate them in place.
type Entry struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	SizeBytes int64     `json:"sizeBytes"`
}

// Stats exposes monotonic hit/miss counters for diagnostics. Values are not
// guaranteed exact under concurrency but never decrease.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// ArtifactCache is the store shared by the stage executors. Lookup returns
// absent (not an error) for missing or expired keys; Store overwrites with
// last-write-wins semantics for a given key.
type ArtifactCache interface {
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context) (int64, error)
	Stats() Stats
	Close(ctx context.Context) error
}
