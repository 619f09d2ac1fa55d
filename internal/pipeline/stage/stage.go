// Package stage contains the per-stage executors that sit between the
// orchestrator and the providers. Each executor consults the artifact cache,
// collapses duplicate in-flight work, invokes its provider through the
// gateway and applies the stage's fallback when the provider fails.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valluvarai/valluvarai/internal/metrics"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
)

// Error reports a stage that could not produce a result, including after its
// fallback was consulted.
type Error struct {
	Stage  artifact.Stage
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Runtime bundles the plumbing every stage executor shares: the artifact
// cache, its TTL, metrics and logging. A cache failure never fails the
// request; the executor degrades to a direct provider call.
type Runtime struct {
	cache   cache.ArtifactCache
	ttl     time.Duration
	metrics *metrics.Recorder
	logger  *slog.Logger
	flights flightGroup
}

// NewRuntime builds the shared stage plumbing. c may be a disabled cache but
// must not be nil.
func NewRuntime(c cache.ArtifactCache, ttl time.Duration, rec *metrics.Recorder, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		cache:   c,
		ttl:     ttl,
		metrics: rec,
		logger:  logger,
	}
}

// fetch serves one unit of stage work: cache lookup first, then the compute
// function under in-flight collapse, then a best-effort store. The returned
// source distinguishes a cache hit from fresh provider output.
func (r *Runtime) fetch(ctx context.Context, stage artifact.Stage, key string, compute func(context.Context) ([]byte, error)) ([]byte, artifact.Source, error) {
	start := time.Now()
	entry, found, err := r.cache.Lookup(ctx, key)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		// Cache outage: log once and continue straight to the provider.
		r.metrics.ObserveCacheLookup(string(stage), metrics.CacheLookupError, elapsed)
		r.logger.Warn("artifact cache unavailable, bypassing",
			slog.String("stage", string(stage)),
			slog.Any("error", err))
	case found:
		r.metrics.ObserveCacheLookup(string(stage), metrics.CacheLookupHit, elapsed)
		return entry.Payload, artifact.SourceCache, nil
	default:
		r.metrics.ObserveCacheLookup(string(stage), metrics.CacheLookupMiss, elapsed)
	}

	payload, err := r.flights.do(ctx, key, func() ([]byte, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		r.store(ctx, stage, key, out)
		return out, nil
	})
	if err != nil {
		return nil, "", err
	}
	return payload, artifact.SourceProvider, nil
}

func (r *Runtime) store(ctx context.Context, stage artifact.Stage, key string, payload []byte) {
	start := time.Now()
	if err := r.cache.Store(ctx, key, payload, r.ttl); err != nil {
		r.metrics.ObserveCacheStore(string(stage), metrics.CacheStoreError, time.Since(start))
		r.logger.Warn("artifact cache store failed",
			slog.String("stage", string(stage)),
			slog.Any("error", err))
		return
	}
	r.metrics.ObserveCacheStore(string(stage), metrics.CacheStoreStored, time.Since(start))
}

// flightGroup collapses concurrent requests for the same cache key so only
// one provider call runs; followers share the leader's payload or error.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightCall struct {
	done    chan struct{}
	payload []byte
	err     error
}

func (g *flightGroup) do(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flightCall)
	}
	if existing, ok := g.calls[key]; ok {
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-existing.done:
			return existing.payload, existing.err
		}
	}
	call := &flightCall{done: make(chan struct{})}
	g.calls[key] = call
	g.mu.Unlock()

	call.payload, call.err = fn()

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	close(call.done)

	return call.payload, call.err
}
