// Package boltcache provides a memoize storage backend on top of bbolt, an
// embedded single-file key/value database. Suitable when records must survive
// restarts without running an external service.
package boltcache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/goforj/memoize/memocore"
)

var recordMagic = []byte("MBR1")

const defaultBucket = "memoize"

// Config configures a bolt-backed storage.
type Config struct {
	// Path is the database file; created if absent.
	Path string
	// Bucket namespaces records. Defaults to "memoize".
	Bucket string
	// OpenTimeout bounds how long Open waits for the file lock.
	OpenTimeout time.Duration
}

type store struct {
	db     *bolt.DB
	bucket []byte
}

// New opens (or creates) the database at cfg.Path and ensures the bucket
// exists.
func New(cfg Config) (memocore.Storage, error) {
	if cfg.Path == "" {
		return nil, &memocore.ConfigurationError{Message: "boltcache: path is required"}
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &store{db: db, bucket: []byte(bucket)}, nil
}

func (s *store) Driver() memocore.Driver { return memocore.DriverBolt }

func (s *store) Ready(context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return errors.New("boltcache: bucket missing")
		}
		return nil
	})
}

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expired bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		expiresAt, body, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if expiresAt > 0 && time.Now().UnixNano() > expiresAt {
			expired = true
			return nil
		}
		value = append([]byte(nil), body...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if expired {
		// Best-effort eager removal; the record is logically gone either way.
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *store) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	var expiresAt int64
	if expiresIn > 0 {
		expiresAt = time.Now().Add(expiresIn).UnixNano()
	}
	record := make([]byte, 0, 12+len(value))
	record = append(record, recordMagic...)
	var exp [8]byte
	binary.BigEndian.PutUint64(exp[:], uint64(expiresAt))
	record = append(record, exp[:]...)
	record = append(record, value...)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), record)
	})
}

func (s *store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Close releases the underlying database file lock.
func (s *store) Close() error { return s.db.Close() }

func decodeRecord(raw []byte) (int64, []byte, error) {
	if len(raw) < 12 || !bytes.Equal(raw[:4], recordMagic) {
		return 0, nil, errors.New("boltcache: unrecognized record")
	}
	return int64(binary.BigEndian.Uint64(raw[4:12])), raw[12:], nil
}
