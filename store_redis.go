package memoize

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goforj/memoize/memocore"
)

// RedisClient captures the subset of redis.Client used by the storage.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type redisStorage struct {
	client RedisClient
	prefix string
}

func newRedisStorage(client RedisClient, prefix string) memocore.Storage {
	if prefix == "" {
		prefix = defaultStoragePrefix
	}
	return &redisStorage{client: client, prefix: prefix}
}

// errRedisUnconfigured is the distinguished misconfiguration signal: it
// propagates through the decorators unwrapped instead of being folded into a
// CacheError.
func errRedisUnconfigured() error {
	return &memocore.ConfigurationError{Message: "memoize: redis client not configured"}
}

func (s *redisStorage) Driver() memocore.Driver { return memocore.DriverRedis }

func (s *redisStorage) Ready(ctx context.Context) error {
	if s.client == nil {
		return errRedisUnconfigured()
	}
	return s.client.Ping(ctx).Err()
}

func (s *redisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRedisUnconfigured()
	}
	value, err := s.client.Get(ctx, s.storageKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *redisStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	if s.client == nil {
		return errRedisUnconfigured()
	}
	if expiresIn < 0 {
		expiresIn = 0 // redis: 0 means no expiry
	}
	return s.client.Set(ctx, s.storageKey(key), value, expiresIn).Err()
}

func (s *redisStorage) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return errRedisUnconfigured()
	}
	return s.client.Del(ctx, s.storageKey(key)).Err()
}

func (s *redisStorage) storageKey(key string) string {
	return s.prefix + ":" + key
}
