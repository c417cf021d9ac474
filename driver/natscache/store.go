// Package natscache provides a memoize storage backend on a NATS JetStream
// key-value bucket. Expiry is carried in a record envelope unless the bucket
// itself enforces a TTL.
package natscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/goforj/memoize/memocore"
)

const envelopeMarker = "memo-v1"

// KeyValue captures the subset of nats.KeyValue used by the storage.
type KeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
}

// Config configures a NATS-backed storage.
type Config struct {
	// KV is the bucket handle; required.
	KV KeyValue
	// Prefix namespaces keys within a shared bucket.
	Prefix string
	// BucketTTL disables the record envelope; use it when the bucket was
	// created with a TTL and should own expiry entirely.
	BucketTTL bool
}

type store struct {
	kv        KeyValue
	prefix    string
	bucketTTL bool
}

type envelope struct {
	Marker    string `json:"m"`
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"ea"`
}

// New builds a NATS-backed memocore.Storage.
func New(cfg Config) (memocore.Storage, error) {
	if cfg.KV == nil {
		return nil, &memocore.ConfigurationError{Message: "natscache: key-value bucket is required"}
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "memoize"
	}
	return &store{kv: cfg.KV, prefix: prefix, bucketTTL: cfg.BucketTTL}, nil
}

func (s *store) Driver() memocore.Driver { return memocore.DriverNATS }

func (s *store) Ready(context.Context) error {
	if s.kv == nil {
		return &memocore.ConfigurationError{Message: "natscache: key-value bucket is required"}
	}
	return nil
}

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(s.storageKey(key))
	if isMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return nil, false, nil
	}
	if s.bucketTTL {
		return append([]byte(nil), entry.Value()...), true, nil
	}
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil || env.Marker != envelopeMarker {
		return nil, false, errors.New("natscache: unrecognized record envelope")
	}
	if env.ExpiresAt > 0 && time.Now().UnixNano() > env.ExpiresAt {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (s *store) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	body := value
	if !s.bucketTTL {
		var expiresAt int64
		if expiresIn > 0 {
			expiresAt = time.Now().Add(expiresIn).UnixNano()
		}
		encoded, err := json.Marshal(envelope{Marker: envelopeMarker, Value: value, ExpiresAt: expiresAt})
		if err != nil {
			return err
		}
		body = encoded
	}
	_, err := s.kv.Put(s.storageKey(key), body)
	return err
}

func (s *store) Delete(_ context.Context, key string) error {
	err := s.kv.Delete(s.storageKey(key))
	if isMiss(err) {
		return nil
	}
	return err
}

func (s *store) storageKey(key string) string {
	return s.prefix + "." + key
}

func isMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}
