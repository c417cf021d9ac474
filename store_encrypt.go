package memoize

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/goforj/memoize/memocore"
)

var (
	encryptMagic = []byte("MEC1")

	ErrDecryptFailed = errors.New("memoize: decrypt failed")
)

// encryptingStorage seals records with AES-GCM before they reach the inner
// storage. Unsealed records read back untouched, so encryption can be enabled
// on a backend that already holds plaintext records.
type encryptingStorage struct {
	inner memocore.Storage
	aead  cipher.AEAD
}

func newEncryptingStorage(inner memocore.Storage, key []byte) (memocore.Storage, error) {
	if len(key) == 0 {
		return inner, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &memocore.ConfigurationError{
			Message: "memoize: encryption key must be 16, 24, or 32 bytes",
			Err:     err,
		}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &encryptingStorage{inner: inner, aead: aead}, nil
}

func (s *encryptingStorage) Driver() memocore.Driver { return s.inner.Driver() }

func (s *encryptingStorage) Ready(ctx context.Context) error { return s.inner.Ready(ctx) }

func (s *encryptingStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	plain, err := s.open(body)
	if err != nil {
		return nil, false, err
	}
	return plain, true, nil
}

func (s *encryptingStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed, expiresIn)
}

func (s *encryptingStorage) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *encryptingStorage) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := s.aead.Seal(nil, nonce, plain, nil)
	buf := make([]byte, 0, len(encryptMagic)+1+len(nonce)+len(ct))
	buf = append(buf, encryptMagic...)
	buf = append(buf, byte(len(nonce)))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return buf, nil
}

func (s *encryptingStorage) open(in []byte) ([]byte, error) {
	if len(in) < len(encryptMagic)+1 || !bytes.Equal(in[:len(encryptMagic)], encryptMagic) {
		return in, nil
	}
	nonceLen := int(in[len(encryptMagic)])
	offset := len(encryptMagic) + 1
	if len(in) < offset+nonceLen {
		return nil, ErrDecryptFailed
	}
	nonce := in[offset : offset+nonceLen]
	plain, err := s.aead.Open(nil, nonce, in[offset+nonceLen:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
