package memoize

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// callGuard gates whether concurrent calls through one decorated function may
// overlap. The variant is chosen once at decoration time: nullGuard when
// concurrent calls are allowed, an exclusive guard otherwise. Acquisition is
// always paired with a deferred release so the guard is dropped on every exit
// path, including panics and cancellation.
type callGuard interface {
	acquire(ctx context.Context) error
	release()
}

// nullGuard never contends; concurrent calls with the same key may race and
// each execute the wrapped function. Accepted behavior, not a bug.
type nullGuard struct{}

func (nullGuard) acquire(context.Context) error { return nil }
func (nullGuard) release()                      {}

// mutexGuard serializes calls for the sync decorator. The lock is scoped to
// the decorated function, not to the call key.
type mutexGuard struct{ mu sync.Mutex }

func (g *mutexGuard) acquire(context.Context) error {
	g.mu.Lock()
	return nil
}

func (g *mutexGuard) release() { g.mu.Unlock() }

// semGuard serializes calls for the context-aware decorator. A weighted
// semaphore instead of a mutex so acquisition honors caller cancellation.
type semGuard struct{ sem *semaphore.Weighted }

func newSemGuard() *semGuard { return &semGuard{sem: semaphore.NewWeighted(1)} }

func (g *semGuard) acquire(ctx context.Context) error { return g.sem.Acquire(ctx, 1) }

func (g *semGuard) release() { g.sem.Release(1) }
