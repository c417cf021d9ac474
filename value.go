package memoize

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/goforj/memoize/memocore"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// recordMagic versions the framed record layout written to storage.
var recordMagic = []byte("MZR1")

var errRecordTooLarge = errors.New("memoize: encoded result exceeds the record frame limit")

// frameLimitExceeded reports whether an encoded result no longer fits the
// uint32 length prefix of the record frame.
func frameLimitExceeded(n int64) bool { return n > math.MaxUint32 }

// Value wraps fn so that calls with equal arguments are served from storage
// instead of recomputing. The returned function has the identical type as fn;
// every hit yields an independently owned copy of the cached result, never a
// shared reference.
//
// The wrapped function may return any number of results with an optional
// trailing error. A non-nil error from fn propagates to the caller and is
// never cached. Cache machinery failures are delivered through fn's trailing
// error result; wrapping a function without an error result is allowed, but
// then a cache-read failure panics since there is no channel to report it.
//
// A function whose first parameter is a context.Context is rejected at
// decoration time; use ValueCtx for those.
func Value[F any](fn F, opts ...Option) (F, error) {
	var zero F
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return zero, &memocore.ConfigurationError{Message: "memoize: Value requires a non-nil function"}
	}
	t := fv.Type()
	if t.NumIn() > 0 && t.In(0) == ctxType {
		return zero, &memocore.ConfigurationError{
			Message: "memoize: Value cannot wrap a context-aware function; use ValueCtx",
		}
	}
	core, err := newValueCore(fv, opts, false)
	if err != nil {
		return zero, err
	}
	wrapper := reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		return core.invoke(context.Background(), args, args)
	})
	return wrapper.Interface().(F), nil
}

// MustValue is Value that panics on a configuration error. Intended for
// package-level decoration where misuse is a programming error.
func MustValue[F any](fn F, opts ...Option) F {
	wrapped, err := Value(fn, opts...)
	if err != nil {
		panic(err)
	}
	return wrapped
}

// valueCore holds the per-decoration state shared by the sync and
// context-aware wrappers: identity, configuration, the serialization guard
// and the lazily resolved storage handle.
type valueCore struct {
	identity string
	fn       reflect.Value
	variadic bool
	outTypes []reflect.Type // result types excluding the trailing error
	errIndex int            // position of the trailing error result, -1 if none

	guard    callGuard
	codec    Codec
	encoders TypeEncoders
	expiry   time.Duration
	observer Observer

	factory memocore.Factory
	refKey  RefKey
	refs    *ReferenceCache
	storage atomic.Value // memocore.Storage once resolved
}

func newValueCore(fv reflect.Value, opts []Option, ctxAware bool) (*valueCore, error) {
	cfg := defaultValueConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.factory == nil {
		return nil, &memocore.ConfigurationError{Message: "memoize: storage factory must not be nil"}
	}
	if cfg.codec == nil {
		return nil, &memocore.ConfigurationError{Message: "memoize: codec must not be nil"}
	}

	t := fv.Type()
	if t.NumOut() == 0 {
		return nil, &memocore.ConfigurationError{Message: "memoize: function returns nothing to memoize"}
	}
	errIndex := -1
	numVals := t.NumOut()
	if t.Out(t.NumOut()-1) == errType {
		errIndex = t.NumOut() - 1
		numVals--
	}
	if numVals == 0 {
		return nil, &memocore.ConfigurationError{Message: "memoize: function returns only an error; nothing to memoize"}
	}
	outTypes := make([]reflect.Type, 0, numVals)
	for i := 0; i < numVals; i++ {
		outTypes = append(outTypes, t.Out(i))
	}

	var guard callGuard = nullGuard{}
	if !cfg.allowConcurrent {
		if ctxAware {
			guard = newSemGuard()
		} else {
			guard = &mutexGuard{}
		}
	}

	return &valueCore{
		identity: functionIdentity(fv),
		fn:       fv,
		variadic: t.IsVariadic(),
		outTypes: outTypes,
		errIndex: errIndex,
		guard:    guard,
		codec:    cfg.codec,
		encoders: cfg.encoders,
		expiry:   cfg.expiry,
		observer: cfg.observer,
		factory:  cfg.factory,
		refKey: RefKey{
			Function:   functionIdentity(reflect.ValueOf(cfg.factory)),
			FactoryKey: cfg.factoryKey,
		},
		refs: cfg.refs,
	}, nil
}

// storageHandle resolves the backend lazily on first call. The fast path is
// an atomic read of the published handle; on absence the factory runs through
// the reference cache, which guarantees at-most-one construction per factory
// identity even when several decorated functions race here.
func (c *valueCore) storageHandle(ctx context.Context) (memocore.Storage, error) {
	if st, ok := c.storage.Load().(memocore.Storage); ok {
		return st, nil
	}
	v, err := c.refs.GetOrCreateCtx(ctx, c.refKey, func(ctx context.Context) (any, error) {
		return c.factory(ctx)
	})
	if err != nil {
		return nil, err
	}
	st, ok := v.(memocore.Storage)
	if !ok {
		return nil, &memocore.ConfigurationError{
			Message: fmt.Sprintf("memoize: factory for %s produced %T, not a Storage", c.identity, v),
		}
	}
	c.storage.Store(st)
	return st, nil
}

// invoke runs the hit/miss/store protocol for one call. keyArgs feed key
// derivation (the context parameter, when present, is excluded); callArgs are
// passed to the wrapped function unchanged.
func (c *valueCore) invoke(ctx context.Context, keyArgs, callArgs []reflect.Value) []reflect.Value {
	st, err := c.storageHandle(ctx)
	if err != nil {
		return c.fail(err)
	}
	if err := c.guard.acquire(ctx); err != nil {
		return c.fail(err)
	}
	defer c.guard.release()

	key, err := callKey(c.identity, c.encoders, keyArgs)
	if err != nil {
		return c.fail(err)
	}

	start := time.Now()
	data, ok, err := st.Get(ctx, key)
	c.observe(ctx, key, "get", ok, err, start, st)
	if err != nil {
		var confErr *memocore.ConfigurationError
		if errors.As(err, &confErr) {
			return c.fail(err)
		}
		return c.fail(&CacheError{Op: "get", Key: key, Err: err})
	}
	if ok {
		vals, err := c.decodeRecord(data)
		if err != nil {
			return c.fail(&CacheError{Op: "decode", Key: key, Err: err})
		}
		return c.results(vals, nil)
	}

	var results []reflect.Value
	if c.variadic {
		results = c.fn.CallSlice(callArgs)
	} else {
		results = c.fn.Call(callArgs)
	}
	if c.errIndex >= 0 && !results[c.errIndex].IsNil() {
		// The call itself failed; nothing is cached.
		return results
	}

	data, badIdx, err := c.encodeRecord(results[:len(c.outTypes)])
	if err != nil {
		return c.fail(&UnserializableReturnValueError{
			Function: c.identity,
			Value:    results[badIdx].Interface(),
			Err:      err,
		})
	}

	start = time.Now()
	setErr := st.Set(ctx, key, data, c.expiry)
	c.observe(ctx, key, "set", false, setErr, start, st)
	// A failed write loses only the cache entry; the computed value is still
	// delivered to the caller.
	return results
}

// encodeRecord frames each result: magic, then per value a big-endian length
// prefix and the codec output. Returns the index of the offending result on
// failure.
func (c *valueCore) encodeRecord(vals []reflect.Value) ([]byte, int, error) {
	var buf bytes.Buffer
	buf.Write(recordMagic)
	for i, v := range vals {
		b, err := c.codec.Marshal(v.Interface())
		if err != nil {
			return nil, i, err
		}
		if frameLimitExceeded(int64(len(b))) {
			return nil, i, errRecordTooLarge
		}
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		buf.Write(n[:])
		buf.Write(b)
	}
	return buf.Bytes(), -1, nil
}

// decodeRecord rebuilds the result values from a stored record. Each value is
// decoded into freshly allocated memory, so callers never alias cached state.
func (c *valueCore) decodeRecord(data []byte) ([]reflect.Value, error) {
	if len(data) < len(recordMagic) || !bytes.Equal(data[:len(recordMagic)], recordMagic) {
		return nil, errors.New("unrecognized record header")
	}
	rest := data[len(recordMagic):]
	vals := make([]reflect.Value, 0, len(c.outTypes))
	for _, outType := range c.outTypes {
		if len(rest) < 4 {
			return nil, errors.New("truncated record")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return nil, errors.New("truncated record")
		}
		ptr := reflect.New(outType)
		if err := c.codec.Unmarshal(rest[:n], ptr.Interface()); err != nil {
			return nil, err
		}
		vals = append(vals, ptr.Elem())
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing bytes in record")
	}
	return vals, nil
}

// results assembles the wrapper's return values from decoded results and an
// error for the trailing error slot.
func (c *valueCore) results(vals []reflect.Value, err error) []reflect.Value {
	if c.errIndex < 0 {
		return vals
	}
	out := make([]reflect.Value, 0, len(vals)+1)
	out = append(out, vals...)
	ev := reflect.Zero(errType)
	if err != nil {
		ev = reflect.New(errType).Elem()
		ev.Set(reflect.ValueOf(err))
	}
	out = append(out, ev)
	return out
}

// fail surfaces a cache machinery error. With a trailing error result it is
// returned alongside zero values; without one there is no reporting channel,
// so the wrapper panics rather than silently recomputing or returning junk.
func (c *valueCore) fail(err error) []reflect.Value {
	if c.errIndex < 0 {
		panic(err)
	}
	zeros := make([]reflect.Value, 0, len(c.outTypes))
	for _, t := range c.outTypes {
		zeros = append(zeros, reflect.Zero(t))
	}
	return c.results(zeros, err)
}

func (c *valueCore) observe(ctx context.Context, key, op string, hit bool, err error, start time.Time, st memocore.Storage) {
	if c.observer == nil {
		return
	}
	c.observer.OnCall(ctx, c.identity, key, op, hit, err, time.Since(start), st.Driver())
}
