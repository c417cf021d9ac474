package memoize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goforj/memoize/memocore"
	"github.com/goforj/memoize/memotest"
)

func TestFileStorageContract(t *testing.T) {
	storage := NewFileStorage(context.Background(), t.TempDir())
	if storage.Driver() != memocore.DriverFile {
		t.Fatalf("unexpected driver %q", storage.Driver())
	}
	memotest.RunStorageContract(t, storage, memotest.Options{})
}

func TestFileStorageCorruptRecordIsRemoved(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage := NewFileStorage(ctx, dir)

	if err := storage.Set(ctx, "victim", []byte("value"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one record file, got %d (%v)", len(entries), err)
	}
	path := filepath.Join(dir, entries[0].Name())
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupting record failed: %v", err)
	}

	if _, _, err := storage.Get(ctx, "victim"); err == nil {
		t.Fatalf("expected error for corrupt record")
	}
	// The bad record was discarded; the next read is a clean miss.
	if _, ok, err := storage.Get(ctx, "victim"); err != nil || ok {
		t.Fatalf("expected clean miss after discard: ok=%v err=%v", ok, err)
	}
}

func TestFileStorageUnwritableDirBecomesErrorStorage(t *testing.T) {
	ctx := context.Background()
	// A regular file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	storage := NewFileStorage(ctx, filepath.Join(blocker, "nested"))

	if storage.Driver() != memocore.DriverFile {
		t.Fatalf("error storage lost driver identity: %q", storage.Driver())
	}
	if err := storage.Ready(ctx); err == nil {
		t.Fatalf("expected readiness failure")
	}
	if _, _, err := storage.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get failure")
	}
	if err := storage.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set failure")
	}
}

func TestFileStorageKeysMapToDistinctFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage := NewFileStorage(ctx, dir)

	if err := storage.Set(ctx, "one", []byte("1"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := storage.Set(ctx, "two", []byte("2"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected two record files, got %d (%v)", len(entries), err)
	}
}
