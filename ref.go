package memoize

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// RefKey identifies a factory in the reference cache: the factory's qualified
// function identity plus an optional disambiguating key. Two closures built
// from the same function literal are indistinguishable by identity alone;
// FactoryKey separates them explicitly.
type RefKey struct {
	Function   string
	FactoryKey string
}

type refValue struct{ v any }

type refEntry struct {
	sem *semaphore.Weighted
	val atomic.Value // holds refValue once construction succeeds
}

// ReferenceCache memoizes the result of calling a factory exactly once per
// RefKey, returning the same instance to every caller. Entries are created
// lazily and live until process exit; there is no eviction and no teardown.
type ReferenceCache struct {
	mu      sync.RWMutex
	entries map[RefKey]*refEntry
}

// NewReferenceCache returns an empty reference cache. Most callers should use
// the package-level Reference/ReferenceCtx helpers, which share one
// process-wide cache.
func NewReferenceCache() *ReferenceCache {
	return &ReferenceCache{entries: make(map[RefKey]*refEntry)}
}

var defaultRefs = NewReferenceCache()

// DefaultReferenceCache returns the process-wide reference cache used by the
// package-level helpers and, by default, by the value decorators for their
// storage factories.
func DefaultReferenceCache() *ReferenceCache { return defaultRefs }

func (c *ReferenceCache) entry(key RefKey) *refEntry {
	c.mu.RLock()
	e := c.entries[key]
	c.mu.RUnlock()
	if e != nil {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil {
		return e
	}
	e = &refEntry{sem: semaphore.NewWeighted(1)}
	c.entries[key] = e
	return e
}

// GetOrCreateCtx returns the memoized instance for key, constructing it with
// factory on confirmed absence. Double-checked: an unlocked fast-path read of
// the published value, then a cancellable per-key critical section and a
// re-check, so the factory runs at most once regardless of how many callers
// race on first access. A factory error is not published; later callers retry
// construction.
func (c *ReferenceCache) GetOrCreateCtx(ctx context.Context, key RefKey, factory func(ctx context.Context) (any, error)) (any, error) {
	e := c.entry(key)
	if v, ok := e.val.Load().(refValue); ok {
		return v.v, nil
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	if v, ok := e.val.Load().(refValue); ok {
		return v.v, nil
	}
	v, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	e.val.Store(refValue{v: v})
	return v, nil
}

// GetOrCreate is the synchronous counterpart of GetOrCreateCtx.
func (c *ReferenceCache) GetOrCreate(key RefKey, factory func() (any, error)) (any, error) {
	return c.GetOrCreateCtx(context.Background(), key, func(context.Context) (any, error) {
		return factory()
	})
}

// Len reports how many entries have been touched. Intended for tests and
// diagnostics.
func (c *ReferenceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RefOption configures the Reference/ReferenceCtx helpers.
type RefOption func(*refConfig)

type refConfig struct {
	cache *ReferenceCache
	key   string
}

// WithRefKey disambiguates otherwise-identical factories, typically closures
// over different configuration built from the same function literal.
func WithRefKey(key string) RefOption {
	return func(cfg *refConfig) { cfg.key = key }
}

// WithRefCache routes the helper through a specific reference cache instead
// of the process-wide one.
func WithRefCache(cache *ReferenceCache) RefOption {
	return func(cfg *refConfig) { cfg.cache = cache }
}

// Reference memoizes factory as a process-wide singleton: every call to the
// returned function yields the same instance, constructed at most once even
// under concurrent first access.
func Reference[T any](factory func() (T, error), opts ...RefOption) func() (T, error) {
	cfg := refConfig{cache: defaultRefs}
	for _, opt := range opts {
		opt(&cfg)
	}
	key := RefKey{Function: functionIdentity(reflect.ValueOf(factory)), FactoryKey: cfg.key}
	return func() (T, error) {
		v, err := cfg.cache.GetOrCreate(key, func() (any, error) { return factory() })
		if err != nil {
			var zero T
			return zero, err
		}
		return v.(T), nil
	}
}

// ReferenceCtx is the context-aware counterpart of Reference. Cancellation of
// a caller waiting on first construction propagates without leaving the
// per-key critical section held.
func ReferenceCtx[T any](factory func(ctx context.Context) (T, error), opts ...RefOption) func(ctx context.Context) (T, error) {
	cfg := refConfig{cache: defaultRefs}
	for _, opt := range opts {
		opt(&cfg)
	}
	key := RefKey{Function: functionIdentity(reflect.ValueOf(factory)), FactoryKey: cfg.key}
	return func(ctx context.Context) (T, error) {
		v, err := cfg.cache.GetOrCreateCtx(ctx, key, func(ctx context.Context) (any, error) { return factory(ctx) })
		if err != nil {
			var zero T
			return zero, err
		}
		return v.(T), nil
	}
}
