package natscache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/goforj/memoize/memocore"
	"github.com/goforj/memoize/memotest"
)

type fakeEntry struct {
	key   string
	value []byte
	rev   uint64
	op    nats.KeyValueOp
}

func (e *fakeEntry) Bucket() string             { return "test" }
func (e *fakeEntry) Key() string                { return e.key }
func (e *fakeEntry) Value() []byte              { return e.value }
func (e *fakeEntry) Revision() uint64           { return e.rev }
func (e *fakeEntry) Created() time.Time         { return time.Time{} }
func (e *fakeEntry) Delta() uint64              { return 0 }
func (e *fakeEntry) Operation() nats.KeyValueOp { return e.op }

// fakeKV is an in-memory stand-in for a JetStream key-value bucket.
type fakeKV struct {
	mu    sync.Mutex
	items map[string]*fakeEntry
	rev   uint64
}

func newFakeKV() *fakeKV {
	return &fakeKV{items: map[string]*fakeEntry{}}
}

func (f *fakeKV) Get(key string) (nats.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return e, nil
}

func (f *fakeKV) Put(key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rev++
	f.items[key] = &fakeEntry{
		key:   key,
		value: append([]byte(nil), value...),
		rev:   f.rev,
		op:    nats.KeyValuePut,
	}
	return f.rev, nil
}

func (f *fakeKV) Delete(key string, _ ...nats.DeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return nats.ErrKeyNotFound
	}
	delete(f.items, key)
	return nil
}

func TestNATSStorageContract(t *testing.T) {
	storage, err := New(Config{KV: newFakeKV()})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if storage.Driver() != memocore.DriverNATS {
		t.Fatalf("unexpected driver %q", storage.Driver())
	}
	memotest.RunStorageContract(t, storage, memotest.Options{})
}

func TestNATSStorageRequiresBucket(t *testing.T) {
	_, err := New(Config{})
	var confErr *memocore.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestNATSStorageKeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	storage, err := New(Config{KV: kv, Prefix: "svc"})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	if err := storage.Set(ctx, "abc", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for key := range kv.items {
		if !strings.HasPrefix(key, "svc.") {
			t.Fatalf("key %q lacks the configured prefix", key)
		}
	}
	if len(kv.items) != 1 {
		t.Fatalf("expected one record, got %d", len(kv.items))
	}
}

func TestNATSStorageTombstoneIsAMiss(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	storage, err := New(Config{KV: kv})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	// A delete marker left in the bucket must read as a miss, not a value.
	kv.mu.Lock()
	kv.items["memoize.ghost"] = &fakeEntry{key: "memoize.ghost", op: nats.KeyValueDelete}
	kv.mu.Unlock()

	if _, ok, err := storage.Get(ctx, "ghost"); err != nil || ok {
		t.Fatalf("tombstone was treated as a hit: ok=%v err=%v", ok, err)
	}
}

func TestNATSStorageForeignRecordIsAnError(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	storage, err := New(Config{KV: kv})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	if _, err := kv.Put("memoize.alien", []byte("not an envelope")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, _, err := storage.Get(ctx, "alien"); err == nil {
		t.Fatalf("expected error for a record without an envelope")
	}
}

func TestNATSStorageBucketTTLSkipsEnvelope(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	storage, err := New(Config{KV: kv, BucketTTL: true})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	if err := storage.Set(ctx, "k", []byte("raw"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	kv.mu.Lock()
	raw := string(kv.items["memoize.k"].value)
	kv.mu.Unlock()
	if raw != "raw" {
		t.Fatalf("bucket-ttl mode still wrapped the value: %q", raw)
	}
	body, ok, err := storage.Get(ctx, "k")
	if err != nil || !ok || string(body) != "raw" {
		t.Fatalf("unexpected read: ok=%v body=%q err=%v", ok, string(body), err)
	}
}
