// Package memotest provides a backend-agnostic conformance suite for
// memocore.Storage implementations.
package memotest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/goforj/memoize/memocore"
)

// Options configures shared storage contract checks.
type Options struct {
	// CaseName namespaces keys. Defaults to t.Name().
	CaseName string
	// TTL is the expiry used in the expiry test.
	TTL time.Duration
	// TTLWait is how long the harness waits for expiry to occur.
	TTLWait time.Duration
	// SkipCloneCheck disables the "get returns an independent copy" check
	// for backends that cannot guarantee it.
	SkipCloneCheck bool
	// SkipExpiry disables the expiry test for backends where waiting is
	// impractical.
	SkipExpiry bool
}

// RunStorageContract exercises the storage contract: readiness, miss,
// round-trip, overwrite, no-expiry persistence, expiry, delete.
func RunStorageContract(t *testing.T, storage memocore.Storage, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 150 * time.Millisecond
	}

	ctx := context.Background()
	key := func(s string) string { return caseName + "-" + s }

	if err := storage.Ready(ctx); err != nil {
		t.Fatalf("storage not ready: %v", err)
	}

	// Absent key misses without error.
	if _, ok, err := storage.Get(ctx, key("absent")); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	// Round-trip without expiry.
	if err := storage.Set(ctx, key("alpha"), []byte("value"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := storage.Get(ctx, key("alpha"))
	if err != nil || !ok || string(body) != "value" {
		t.Fatalf("unexpected get result: ok=%v body=%q err=%v", ok, string(body), err)
	}

	if !opts.SkipCloneCheck {
		body[0] = 'X'
		again, ok, err := storage.Get(ctx, key("alpha"))
		if err != nil || !ok {
			t.Fatalf("re-get failed: ok=%v err=%v", ok, err)
		}
		if !bytes.Equal(again, []byte("value")) {
			t.Fatalf("stored value was aliased by a previous get: %q", string(again))
		}
	}

	// Overwrite replaces the record.
	if err := storage.Set(ctx, key("alpha"), []byte("value2"), 0); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	body, ok, err = storage.Get(ctx, key("alpha"))
	if err != nil || !ok || string(body) != "value2" {
		t.Fatalf("unexpected value after overwrite: ok=%v body=%q err=%v", ok, string(body), err)
	}

	// Expiry.
	if !opts.SkipExpiry {
		if err := storage.Set(ctx, key("fleeting"), []byte("gone soon"), ttl); err != nil {
			t.Fatalf("set with ttl failed: %v", err)
		}
		if _, ok, err := storage.Get(ctx, key("fleeting")); err != nil || !ok {
			t.Fatalf("expected hit before expiry: ok=%v err=%v", ok, err)
		}
		time.Sleep(wait)
		if _, ok, err := storage.Get(ctx, key("fleeting")); err != nil || ok {
			t.Fatalf("expected miss after expiry: ok=%v err=%v", ok, err)
		}
	}

	// Delete removes the record; deleting an absent key is not an error.
	if err := storage.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := storage.Get(ctx, key("alpha")); err != nil || ok {
		t.Fatalf("expected miss after delete: ok=%v err=%v", ok, err)
	}
	if err := storage.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete of absent key failed: %v", err)
	}
}
