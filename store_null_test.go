package memoize

import (
	"context"
	"testing"

	"github.com/goforj/memoize/memocore"
)

func TestNullStorageAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	storage := NewNullStorage()

	if storage.Driver() != memocore.DriverNull {
		t.Fatalf("unexpected driver %q", storage.Driver())
	}
	if err := storage.Ready(ctx); err != nil {
		t.Fatalf("null storage not ready: %v", err)
	}
	if err := storage.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, err := storage.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("null storage retained a value: ok=%v err=%v", ok, err)
	}
	if err := storage.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}
