// Package memofake provides a deterministic in-memory storage with call
// accounting and fault injection, for testing code that uses memoize without
// external services.
package memofake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memoize/memocore"
)

// Op identifies a storage operation for assertions.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Fake implements memocore.Storage over a plain map, recording every call
// and optionally failing reads or writes with injected errors.
type Fake struct {
	mu     sync.Mutex
	items  map[string]entry
	counts map[Op]map[string]int

	getErr error
	setErr error
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		items:  make(map[string]entry),
		counts: make(map[Op]map[string]int),
	}
}

// Factory returns a memocore.Factory yielding this fake, for injection into
// decorator options.
func (f *Fake) Factory() memocore.Factory {
	return func(context.Context) (memocore.Storage, error) { return f, nil }
}

// FailGets makes every subsequent Get return err. Pass nil to heal.
func (f *Fake) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailSets makes every subsequent Set return err. Pass nil to heal.
func (f *Fake) FailSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

func (f *Fake) Driver() memocore.Driver { return "fake" }

func (f *Fake) Ready(context.Context) error { return nil }

func (f *Fake) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpGet, key)
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(f.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (f *Fake) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpSet, key)
	if f.setErr != nil {
		return f.setErr
	}
	e := entry{value: append([]byte(nil), value...)}
	if expiresIn > 0 {
		e.expiresAt = time.Now().Add(expiresIn)
	}
	f.items[key] = e
	return nil
}

func (f *Fake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpDelete, key)
	delete(f.items, key)
	return nil
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		return 0
	}
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

// Len reports how many live records the fake holds.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Reset clears records and counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = make(map[string]entry)
	f.counts = make(map[Op]map[string]int)
}

// AssertTotal fails the test unless op was called exactly times across keys.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

func (f *Fake) record(op Op, key string) {
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
}
