package memoize

import (
	"reflect"
	"time"

	"github.com/goforj/memoize/memocore"
)

// Option configures a value decorator at decoration time. Configuration is
// validated once per decoration, never per call.
type Option func(*config)

type config struct {
	factory         memocore.Factory
	encoders        TypeEncoders
	expiry          time.Duration
	allowConcurrent bool
	factoryKey      string
	codec           Codec
	observer        Observer
	refs            *ReferenceCache
}

func defaultValueConfig() config {
	return config{
		factory:         MemoryStorageFactory(),
		allowConcurrent: true,
		codec:           MsgpackCodec{},
		refs:            defaultRefs,
	}
}

// WithStorageFactory sets the factory producing the storage backend. The
// factory is wrapped through the reference cache, so decorating several
// functions with the same factory (and FactoryKey) shares one backend
// instance.
func WithStorageFactory(factory memocore.Factory) Option {
	return func(cfg *config) { cfg.factory = factory }
}

// WithFactoryKey disambiguates storage factories that share a function
// identity, such as closures over different addresses built from one helper.
func WithFactoryKey(key string) Option {
	return func(cfg *config) { cfg.factoryKey = key }
}

// WithExpiry sets how long stored records live. Zero or negative means the
// backend keeps them until it evicts on its own.
func WithExpiry(expiresIn time.Duration) Option {
	return func(cfg *config) { cfg.expiry = expiresIn }
}

// WithAllowConcurrent controls the serialization guard. The default (true)
// lets concurrent calls overlap, so two calls with identical arguments may
// both execute the wrapped function and both write; set false to force calls
// through an exclusive per-function guard.
func WithAllowConcurrent(allow bool) Option {
	return func(cfg *config) { cfg.allowConcurrent = allow }
}

// WithTypeEncoder registers a key encoder for arguments of type T, consulted
// before the default encoding.
func WithTypeEncoder[T any](enc func(T) ([]byte, error)) Option {
	return func(cfg *config) {
		if cfg.encoders == nil {
			cfg.encoders = TypeEncoders{}
		}
		cfg.encoders[reflect.TypeOf((*T)(nil)).Elem()] = func(v any) ([]byte, error) {
			return enc(v.(T))
		}
	}
}

// WithTypeEncoders merges a prebuilt encoder map.
func WithTypeEncoders(encoders TypeEncoders) Option {
	return func(cfg *config) {
		if cfg.encoders == nil {
			cfg.encoders = TypeEncoders{}
		}
		for t, enc := range encoders {
			cfg.encoders[t] = enc
		}
	}
}

// WithCodec overrides the serializer for stored values.
func WithCodec(codec Codec) Option {
	return func(cfg *config) { cfg.codec = codec }
}

// WithObserver attaches an observer receiving an event per storage access.
func WithObserver(o Observer) Option {
	return func(cfg *config) { cfg.observer = o }
}

// WithReferenceCache routes storage-factory memoization through a specific
// reference cache. Tests use this to isolate singleton state.
func WithReferenceCache(refs *ReferenceCache) Option {
	return func(cfg *config) { cfg.refs = refs }
}
