package memoize

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/goforj/memoize/memocore"
)

type memoryStorage struct {
	cache *gocache.Cache
}

func newMemoryStorage(cleanupInterval time.Duration) memocore.Storage {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStorage{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (s *memoryStorage) Driver() memocore.Driver { return memocore.DriverMemory }

func (s *memoryStorage) Ready(context.Context) error { return nil }

func (s *memoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStorage) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	if expiresIn <= 0 {
		expiresIn = gocache.NoExpiration
	}
	s.cache.Set(key, cloneBytes(value), expiresIn)
	return nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	clone := make([]byte, len(value))
	copy(clone, value)
	return clone
}
