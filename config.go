package memoize

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/memoize/memocore"
)

const (
	defaultStoragePrefix         = "memoize"
	defaultMemoryCleanupInterval = 10 * time.Minute
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "memoize-file")
}

// StorageConfig controls how a Storage is constructed.
type StorageConfig struct {
	Driver memocore.Driver

	// Prefix namespaces keys on shared backends (e.g. redis).
	Prefix string

	// MemoryCleanupInterval controls how often the memory driver sweeps
	// expired records.
	MemoryCleanupInterval time.Duration

	// FileDir is where the file driver keeps its records.
	FileDir string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// Compress gzips records before they reach the backend.
	Compress bool

	// CompressMinSize skips compression for records below this many bytes.
	CompressMinSize int

	// EncryptionKey enables AES-GCM sealing of records. Must be 16, 24 or 32
	// bytes when set.
	EncryptionKey []byte
}

func (c StorageConfig) withDefaults() StorageConfig {
	if c.Driver == "" {
		c.Driver = memocore.DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = defaultStoragePrefix
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	return c
}

// StorageOption mutates StorageConfig when constructing a storage.
type StorageOption func(StorageConfig) StorageConfig

// WithPrefix sets the key prefix for shared backends.
func WithPrefix(prefix string) StorageOption {
	return func(cfg StorageConfig) StorageConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithMemoryCleanupInterval overrides the sweep interval for the memory
// driver.
func WithMemoryCleanupInterval(interval time.Duration) StorageOption {
	return func(cfg StorageConfig) StorageConfig {
		cfg.MemoryCleanupInterval = interval
		return cfg
	}
}

// WithFileDir controls where the file driver stores records.
func WithFileDir(dir string) StorageOption {
	return func(cfg StorageConfig) StorageConfig {
		cfg.FileDir = dir
		return cfg
	}
}

// WithRedisClient sets the redis client; required for DriverRedis.
func WithRedisClient(client RedisClient) StorageOption {
	return func(cfg StorageConfig) StorageConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithCompression gzips records larger than minSize bytes; zero compresses
// everything.
func WithCompression(minSize int) StorageOption {
	return func(cfg StorageConfig) StorageConfig {
		cfg.Compress = true
		cfg.CompressMinSize = minSize
		return cfg
	}
}

// WithEncryptionKey seals records with AES-GCM under the given key.
func WithEncryptionKey(key []byte) StorageOption {
	return func(cfg StorageConfig) StorageConfig {
		cfg.EncryptionKey = key
		return cfg
	}
}
