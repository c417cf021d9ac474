package memoize

import (
	"context"

	"github.com/goforj/memoize/memocore"
)

// NewStorage returns a concrete storage for the requested driver, wrapped
// with the configured record transforms. A driver that fails to initialize
// yields an errorStorage that preserves the driver identity and surfaces the
// construction error on every call.
func NewStorage(_ context.Context, cfg StorageConfig) memocore.Storage {
	cfg = cfg.withDefaults()
	var storage memocore.Storage
	switch cfg.Driver {
	case memocore.DriverRedis:
		storage = newRedisStorage(cfg.RedisClient, cfg.Prefix)
	case memocore.DriverFile:
		storage = newFileStorage(cfg.FileDir)
	case memocore.DriverNull:
		storage = newNullStorage()
	default:
		storage = newMemoryStorage(cfg.MemoryCleanupInterval)
	}

	// Encryption sits closest to the backend so compression still sees the
	// plaintext record.
	storage, err := newEncryptingStorage(storage, cfg.EncryptionKey)
	if err != nil {
		return newErrorStorage(cfg.Driver, err)
	}
	if cfg.Compress {
		storage = newCompressingStorage(storage, cfg.CompressMinSize)
	}
	return storage
}

// NewStorageWith builds a storage from a driver and functional options.
func NewStorageWith(ctx context.Context, driver memocore.Driver, opts ...StorageOption) memocore.Storage {
	cfg := StorageConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStorage(ctx, cfg)
}

// NewMemoryStorage is a convenience for an in-process storage.
func NewMemoryStorage(ctx context.Context, opts ...StorageOption) memocore.Storage {
	return NewStorageWith(ctx, memocore.DriverMemory, opts...)
}

// NewFileStorage is a convenience for a filesystem-backed storage.
func NewFileStorage(ctx context.Context, dir string, opts ...StorageOption) memocore.Storage {
	return NewStorageWith(ctx, memocore.DriverFile, append([]StorageOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisStorage is a convenience for a redis-backed storage.
func NewRedisStorage(ctx context.Context, client RedisClient, opts ...StorageOption) memocore.Storage {
	return NewStorageWith(ctx, memocore.DriverRedis, append([]StorageOption{WithRedisClient(client)}, opts...)...)
}

// NewNullStorage returns a storage that never hits and drops writes. Useful
// for disabling memoization without touching decoration sites.
func NewNullStorage() memocore.Storage {
	return newNullStorage()
}

// memoryFactory is the one instance handed out for option-free memory
// factories. Reference-cache sharing is keyed on the factory's function
// identity, and the compiler may materialize a fresh closure symbol per call
// site, so the no-option path must not mint closures.
var memoryFactory memocore.Factory = func(ctx context.Context) (memocore.Storage, error) {
	return NewMemoryStorage(ctx), nil
}

// MemoryStorageFactory returns a factory producing an in-process storage.
// Without options the same factory instance is returned from every call, so
// all default-configured decorators share one memory backend; pass a
// FactoryKey to split them. With options a closure is returned; decorators
// that must share such a backend should also share the factory value or set
// an explicit FactoryKey.
func MemoryStorageFactory(opts ...StorageOption) memocore.Factory {
	if len(opts) == 0 {
		return memoryFactory
	}
	return func(ctx context.Context) (memocore.Storage, error) {
		return NewMemoryStorage(ctx, opts...), nil
	}
}

// FileStorageFactory returns a factory producing a file-backed storage
// rooted at dir. The result is a closure; decorators meant to share one
// backend should share the factory value or set a FactoryKey.
func FileStorageFactory(dir string, opts ...StorageOption) memocore.Factory {
	return func(ctx context.Context) (memocore.Storage, error) {
		return NewFileStorage(ctx, dir, opts...), nil
	}
}

// RedisStorageFactory returns a factory producing a redis-backed storage.
// The result is a closure; decorators meant to share one backend should
// share the factory value or set a FactoryKey.
func RedisStorageFactory(client RedisClient, opts ...StorageOption) memocore.Factory {
	return func(ctx context.Context) (memocore.Storage, error) {
		return NewRedisStorage(ctx, client, opts...), nil
	}
}
