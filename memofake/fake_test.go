package memofake

import (
	"context"
	"errors"
	"testing"

	"github.com/goforj/memoize/memotest"
)

func TestFakeStorageContract(t *testing.T) {
	memotest.RunStorageContract(t, New(), memotest.Options{})
}

func TestFakeCountsAndInjection(t *testing.T) {
	ctx := context.Background()
	fake := New()

	if err := fake.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, _, err := fake.Get(ctx, "k"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fake.Count(OpSet, "k") != 1 || fake.Count(OpGet, "k") != 1 {
		t.Fatalf("counts off: set=%d get=%d", fake.Count(OpSet, "k"), fake.Count(OpGet, "k"))
	}

	boom := errors.New("boom")
	fake.FailGets(boom)
	if _, _, err := fake.Get(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("injected get error not returned: %v", err)
	}
	fake.FailGets(nil)
	if _, ok, err := fake.Get(ctx, "k"); err != nil || !ok {
		t.Fatalf("fake did not heal: ok=%v err=%v", ok, err)
	}

	fake.Reset()
	if fake.Len() != 0 || fake.Total(OpGet) != 0 {
		t.Fatalf("reset left state behind")
	}
}
