package memoize

import (
	"bytes"
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goforj/memoize/memocore"
)

// TypeEncoders maps a concrete argument type to the encoder used for key
// derivation when the default encoding of that type is not meaningful (for
// example an identity-only handle). Encoders are consulted before the default
// encoding for every argument whose dynamic type is registered.
type TypeEncoders map[reflect.Type]func(v any) ([]byte, error)

// functionIdentity returns a stable identifier for a callable: its qualified
// symbol name. Closures created from the same function literal share a symbol;
// FactoryKey exists to disambiguate those where it matters.
func functionIdentity(fv reflect.Value) string {
	if fn := runtime.FuncForPC(fv.Pointer()); fn != nil {
		return fn.Name()
	}
	return fmt.Sprintf("%s@%#x", fv.Type().String(), fv.Pointer())
}

// FunctionIdentity reports the identity used in call keys for fn. Exposed so
// callers can correlate observer events or compute keys with KeyFor.
func FunctionIdentity(fn any) string {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return fmt.Sprintf("%T", fn)
	}
	return functionIdentity(fv)
}

// callKey derives the storage key for one call: a SHA-256 digest over the
// function identity and a canonical, length-framed encoding of every
// argument. Collisions here return wrong cached data, so the digest is
// deliberately cryptographic rather than a fast hash.
func callKey(identity string, encoders TypeEncoders, args []reflect.Value) (string, error) {
	h := sha256.New()
	writeFrame(h, []byte(identity))
	for i, arg := range args {
		enc, err := encodeArg(encoders, arg)
		if err != nil {
			return "", &memocore.ConfigurationError{
				Message: fmt.Sprintf("memoize: argument %d of %s has no usable key encoding; register a type encoder", i, identity),
				Err:     err,
			}
		}
		writeFrame(h, enc)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// KeyFor computes the call key Value/ValueCtx would use for fn with args.
// Useful for invalidating a record directly through Storage.Delete. For a
// context-aware function the leading context is omitted from args, and for a
// variadic function the trailing arguments are given flat, exactly as at a
// call site.
func KeyFor(fn any, encoders TypeEncoders, args ...any) (string, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return "", &memocore.ConfigurationError{Message: "memoize: KeyFor requires a function"}
	}
	t := fv.Type()
	start := 0
	if t.NumIn() > 0 && t.In(0) == ctxType {
		start = 1
	}

	vals := make([]reflect.Value, 0, len(args)+1)
	if t.IsVariadic() {
		fixed := t.NumIn() - 1 - start
		if len(args) < fixed {
			return "", &memocore.ConfigurationError{
				Message: fmt.Sprintf("memoize: %s takes at least %d arguments, got %d", functionIdentity(fv), fixed, len(args)),
			}
		}
		for _, a := range args[:fixed] {
			vals = append(vals, reflect.ValueOf(a))
		}
		// The decorated call sees the variadic tail packed into one slice;
		// the derived key must match that shape.
		tailType := t.In(t.NumIn() - 1)
		tail := reflect.MakeSlice(tailType, 0, len(args)-fixed)
		for _, a := range args[fixed:] {
			av := reflect.ValueOf(a)
			if !av.IsValid() {
				av = reflect.Zero(tailType.Elem())
			}
			tail = reflect.Append(tail, av)
		}
		vals = append(vals, tail)
	} else {
		for _, a := range args {
			vals = append(vals, reflect.ValueOf(a))
		}
	}
	return callKey(functionIdentity(fv), encoders, vals)
}

func writeFrame(w io.Writer, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = w.Write(n[:])
	_, _ = w.Write(b)
}

// encodeArg canonicalizes one argument. The encoding is prefixed with the
// dynamic type name so value-equal arguments of different types never
// collide. Types the canonical walk cannot represent (func, chan, live
// handles) must be covered by a registered encoder.
func encodeArg(encoders TypeEncoders, arg reflect.Value) ([]byte, error) {
	if !arg.IsValid() {
		return []byte("<nil>"), nil
	}
	if arg.Kind() == reflect.Interface {
		if arg.IsNil() {
			return []byte("<nil>"), nil
		}
		arg = arg.Elem()
	}
	t := arg.Type()
	if enc, ok := encoders[t]; ok {
		b, err := enc(arg.Interface())
		if err != nil {
			return nil, err
		}
		return append([]byte(t.String()+"#"), b...), nil
	}

	var buf bytes.Buffer
	buf.WriteString(t.String())
	buf.WriteByte('=')
	if err := writeCanonical(&buf, arg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCanonical emits a deterministic byte form of v. Go map iteration order
// is random, so containers are walked recursively with map pairs sorted
// byte-wise before framing; scalars delegate to msgpack and opaque structs to
// their binary/text marshalers.
func writeCanonical(buf *bytes.Buffer, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			buf.WriteString("<nil>")
			return nil
		}
		return writeCanonical(buf, v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("<nil>")
			return nil
		}
		buf.WriteByte('*')
		return writeCanonical(buf, v.Elem())
	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("<nil>")
			return nil
		}
		pairs := make([][]byte, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			var pair bytes.Buffer
			if err := writeCanonical(&pair, iter.Key()); err != nil {
				return err
			}
			pair.WriteByte(':')
			if err := writeCanonical(&pair, iter.Value()); err != nil {
				return err
			}
			pairs = append(pairs, pair.Bytes())
		}
		sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i], pairs[j]) < 0 })
		buf.WriteString("map[")
		for _, p := range pairs {
			writeFrame(buf, p)
		}
		buf.WriteByte(']')
		return nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice {
			if v.IsNil() {
				buf.WriteString("<nil>")
				return nil
			}
			if v.Type().Elem().Kind() == reflect.Uint8 {
				buf.WriteString("bytes:")
				buf.Write(v.Bytes())
				return nil
			}
		}
		buf.WriteString("seq[")
		for i := 0; i < v.Len(); i++ {
			var el bytes.Buffer
			if err := writeCanonical(&el, v.Index(i)); err != nil {
				return err
			}
			writeFrame(buf, el.Bytes())
		}
		buf.WriteByte(']')
		return nil
	case reflect.Struct:
		if b, ok := marshaledBytes(v); ok {
			buf.WriteString("mar:")
			buf.Write(b)
			return nil
		}
		t := v.Type()
		buf.WriteString("struct[")
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			var fb bytes.Buffer
			fb.WriteString(f.Name)
			fb.WriteByte('=')
			if err := writeCanonical(&fb, v.Field(i)); err != nil {
				return err
			}
			writeFrame(buf, fb.Bytes())
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := msgpack.Marshal(v.Interface())
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// marshaledBytes resolves structs whose fields are unexported but which carry
// a stable marshaled form, such as time.Time.
func marshaledBytes(v reflect.Value) ([]byte, bool) {
	if v.CanInterface() {
		if b, ok := tryMarshal(v.Interface()); ok {
			return b, true
		}
	}
	if v.CanAddr() && v.Addr().CanInterface() {
		if b, ok := tryMarshal(v.Addr().Interface()); ok {
			return b, true
		}
	}
	return nil, false
}

func tryMarshal(v any) ([]byte, bool) {
	switch m := v.(type) {
	case encoding.BinaryMarshaler:
		if b, err := m.MarshalBinary(); err == nil {
			return b, true
		}
	case encoding.TextMarshaler:
		if b, err := m.MarshalText(); err == nil {
			return b, true
		}
	}
	return nil, false
}
