package memoize

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/memoize/memocore"
)

// fileRecordMagic versions the on-disk record layout: magic, 8-byte
// big-endian expiry (unix nanos, 0 = never), then the value.
var fileRecordMagic = []byte("MFR1")

type fileStorage struct {
	dir string
}

func newFileStorage(dir string) memocore.Storage {
	if dir == "" {
		dir = defaultFileDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newErrorStorage(memocore.DriverFile, err)
	}
	return &fileStorage{dir: dir}
}

func (s *fileStorage) Driver() memocore.Driver { return memocore.DriverFile }

func (s *fileStorage) Ready(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("memoize: file storage path is not a directory")
	}
	return nil
}

func (s *fileStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	expiresAt, value, err := decodeFileRecord(data)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, err
	}
	if expiresAt > 0 && time.Now().UnixNano() > expiresAt {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *fileStorage) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	var expiresAt int64
	if expiresIn > 0 {
		expiresAt = time.Now().Add(expiresIn).UnixNano()
	}

	// Write to a temp file and rename so readers never observe a partial
	// record.
	tmp, err := os.CreateTemp(s.dir, "memo-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	var header [12]byte
	copy(header[:4], fileRecordMagic)
	binary.BigEndian.PutUint64(header[4:], uint64(expiresAt))

	if _, err := tmp.Write(header[:]); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path(key))
}

func (s *fileStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStorage) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".memo")
}

func decodeFileRecord(data []byte) (int64, []byte, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], fileRecordMagic) {
		return 0, nil, errors.New("memoize: unrecognized file record")
	}
	expiresAt := int64(binary.BigEndian.Uint64(data[4:12]))
	return expiresAt, data[12:], nil
}
