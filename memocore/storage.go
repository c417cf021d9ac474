package memocore

import (
	"context"
	"time"
)

// Storage is the contract a backend must satisfy to hold memoized call
// results. Keys are opaque strings produced by the key generator; values are
// opaque serialized bytes. A backend owns expiry entirely: expiresIn <= 0
// means the record never expires on its own.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	Driver() Driver
	Ready(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Factory produces a Storage instance. Factories are wrapped through the
// reference cache so that repeated decoration with an equal factory identity
// shares one backend instance.
type Factory func(ctx context.Context) (Storage, error)
