package memoize

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goforj/memoize/memocore"
)

func add(a, b int) int { return a + b }

func TestCallKeyDeterministic(t *testing.T) {
	id := functionIdentity(reflect.ValueOf(add))
	args := []reflect.Value{reflect.ValueOf(3), reflect.ValueOf(4)}

	k1, err := callKey(id, nil, args)
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey(id, nil, args)
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("equal calls produced different keys: %s vs %s", k1, k2)
	}
}

func TestCallKeyDistinguishesArguments(t *testing.T) {
	id := functionIdentity(reflect.ValueOf(add))

	k1, err := callKey(id, nil, []reflect.Value{reflect.ValueOf(3)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey(id, nil, []reflect.Value{reflect.ValueOf(4)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("different arguments produced the same key")
	}

	// Value-equal arguments of different types must not collide.
	k3, err := callKey(id, nil, []reflect.Value{reflect.ValueOf(int8(3))})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 == k3 {
		t.Fatalf("int and int8 arguments collided")
	}
}

func TestCallKeyDistinguishesFunctions(t *testing.T) {
	args := []reflect.Value{reflect.ValueOf(3)}
	k1, err := callKey("pkg.one", nil, args)
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey("pkg.two", nil, args)
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("different function identities produced the same key")
	}
}

func TestCallKeyMapArgumentsAreOrderIndependent(t *testing.T) {
	// Maps iterate in random order; the canonical encoding sorts keys, so
	// repeated derivations must agree.
	m := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}
	var first string
	for i := 0; i < 20; i++ {
		k, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(m)})
		if err != nil {
			t.Fatalf("callKey failed: %v", err)
		}
		if first == "" {
			first = k
			continue
		}
		if k != first {
			t.Fatalf("map argument produced unstable keys")
		}
	}
}

func TestCallKeyNestedMapsAreOrderIndependent(t *testing.T) {
	type payload struct {
		Name  string
		Attrs map[string]int
	}
	build := func() []reflect.Value {
		return []reflect.Value{
			reflect.ValueOf(payload{
				Name:  "p",
				Attrs: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6},
			}),
			reflect.ValueOf(map[int]string{1: "one", 2: "two", 3: "three", 4: "four", 5: "five"}),
			reflect.ValueOf(map[string][]int{"x": {1, 2}, "y": {3, 4}, "z": {5}}),
		}
	}
	var first string
	for i := 0; i < 20; i++ {
		k, err := callKey("pkg.fn", nil, build())
		if err != nil {
			t.Fatalf("callKey failed: %v", err)
		}
		if first == "" {
			first = k
			continue
		}
		if k != first {
			t.Fatalf("nested map arguments produced unstable keys")
		}
	}
}

func TestCallKeyMapValuesDistinguish(t *testing.T) {
	k1, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(map[string]int{"a": 1})})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(map[string]int{"a": 2})})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("maps with different values collided")
	}
}

func TestCallKeyTimeArguments(t *testing.T) {
	// time.Time carries only unexported fields; its binary marshaling must
	// drive the key.
	at := time.Unix(1700000000, 0).UTC()
	same := time.Unix(1700000000, 0).UTC()
	k1, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(at)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(same)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("equal times produced different keys")
	}
	k3, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(at.Add(time.Second))})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 == k3 {
		t.Fatalf("distinct times collided")
	}
}

func TestCallKeyPointerArgumentsCompareByValue(t *testing.T) {
	type payload struct{ N int }
	a, b := &payload{N: 7}, &payload{N: 7}
	k1, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(a)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(b)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("value-equal pointers produced different keys")
	}
}

type handle struct {
	ID   string
	conn chan struct{}
}

func TestCallKeyTypeEncoderOverridesDefault(t *testing.T) {
	encoders := TypeEncoders{
		reflect.TypeOf(&handle{}): func(v any) ([]byte, error) {
			return []byte(v.(*handle).ID), nil
		},
	}

	h1 := &handle{ID: "conn-1", conn: make(chan struct{})}
	h2 := &handle{ID: "conn-1", conn: make(chan struct{})}
	k1, err := callKey("pkg.fn", encoders, []reflect.Value{reflect.ValueOf(h1)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	k2, err := callKey("pkg.fn", encoders, []reflect.Value{reflect.ValueOf(h2)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("encoder-equal handles produced different keys")
	}

	h3 := &handle{ID: "conn-2"}
	k3, err := callKey("pkg.fn", encoders, []reflect.Value{reflect.ValueOf(h3)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 == k3 {
		t.Fatalf("distinct handles collided")
	}
}

func TestCallKeyUnencodableArgumentIsConfigurationError(t *testing.T) {
	_, err := callKey("pkg.fn", nil, []reflect.Value{reflect.ValueOf(make(chan int))})
	if err == nil {
		t.Fatalf("expected error for channel argument")
	}
	var confErr *memocore.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
	if !strings.Contains(confErr.Message, "argument 0") {
		t.Fatalf("error does not identify the argument: %v", confErr)
	}
}

func TestFunctionIdentityStable(t *testing.T) {
	id1 := FunctionIdentity(add)
	id2 := FunctionIdentity(add)
	if id1 == "" || id1 != id2 {
		t.Fatalf("unstable function identity: %q vs %q", id1, id2)
	}
	if !strings.Contains(id1, "add") {
		t.Fatalf("identity does not carry the symbol name: %q", id1)
	}
}

func TestKeyForMatchesDecoratorKey(t *testing.T) {
	k1, err := KeyFor(add, nil, 3, 4)
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	k2, err := callKey(functionIdentity(reflect.ValueOf(add)), nil,
		[]reflect.Value{reflect.ValueOf(3), reflect.ValueOf(4)})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("KeyFor disagrees with internal key derivation")
	}

	if _, err := KeyFor("not a function", nil); err == nil {
		t.Fatalf("expected error for non-function")
	}
}

func TestKeyForPacksVariadicTail(t *testing.T) {
	fn := func(prefix string, xs ...int) (string, error) { return prefix, nil }

	// The decorated call key encodes the tail as one packed slice.
	k1, err := KeyFor(fn, nil, "p", 1, 2)
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	k2, err := callKey(functionIdentity(reflect.ValueOf(fn)), nil,
		[]reflect.Value{reflect.ValueOf("p"), reflect.ValueOf([]int{1, 2})})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("KeyFor disagrees with the packed variadic key")
	}

	// Empty tail.
	k3, err := KeyFor(fn, nil, "p")
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	k4, err := callKey(functionIdentity(reflect.ValueOf(fn)), nil,
		[]reflect.Value{reflect.ValueOf("p"), reflect.ValueOf([]int{})})
	if err != nil {
		t.Fatalf("callKey failed: %v", err)
	}
	if k3 != k4 {
		t.Fatalf("KeyFor disagrees for an empty variadic tail")
	}

	// Too few fixed arguments is a configuration defect.
	var confErr *memocore.ConfigurationError
	if _, err := KeyFor(fn, nil); !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}
