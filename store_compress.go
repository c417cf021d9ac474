package memoize

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"time"

	"github.com/goforj/memoize/memocore"
)

var (
	compressMagic = []byte("MCZ1")

	ErrCorruptCompression = errors.New("memoize: corrupt compressed record")
)

// compressingStorage gzips records transparently on top of any concrete
// storage. Records below the threshold pass through unwrapped; reads accept
// both forms, so enabling compression on a populated backend is safe.
type compressingStorage struct {
	inner   memocore.Storage
	minSize int
}

func newCompressingStorage(inner memocore.Storage, minSize int) memocore.Storage {
	if minSize < 0 {
		return inner
	}
	return &compressingStorage{inner: inner, minSize: minSize}
}

func (s *compressingStorage) Driver() memocore.Driver { return s.inner.Driver() }

func (s *compressingStorage) Ready(ctx context.Context) error { return s.inner.Ready(ctx) }

func (s *compressingStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	plain, err := decompressRecord(body)
	if err != nil {
		return nil, false, err
	}
	return plain, true, nil
}

func (s *compressingStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	if len(value) < s.minSize {
		return s.inner.Set(ctx, key, value, expiresIn)
	}
	var buf bytes.Buffer
	buf.Write(compressMagic)
	zw, _ := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if _, err := zw.Write(value); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, buf.Bytes(), expiresIn)
}

func (s *compressingStorage) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func decompressRecord(in []byte) ([]byte, error) {
	if len(in) < len(compressMagic) || !bytes.Equal(in[:len(compressMagic)], compressMagic) {
		return in, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(in[len(compressMagic):]))
	if err != nil {
		return nil, ErrCorruptCompression
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrCorruptCompression
	}
	return out, nil
}
