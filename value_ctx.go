package memoize

import (
	"context"
	"reflect"

	"github.com/goforj/memoize/memocore"
)

// ValueCtx wraps a context-aware function, one whose first parameter is a
// context.Context. The caller's context flows through guard acquisition,
// storage access and factory construction, so cancelling the caller cancels
// the in-flight storage call or wait without leaving the guard held. The
// context is not part of the call key.
//
// A function without a leading context.Context is rejected at decoration
// time; use Value for those.
func ValueCtx[F any](fn F, opts ...Option) (F, error) {
	var zero F
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return zero, &memocore.ConfigurationError{Message: "memoize: ValueCtx requires a non-nil function"}
	}
	t := fv.Type()
	if t.NumIn() == 0 || t.In(0) != ctxType {
		return zero, &memocore.ConfigurationError{
			Message: "memoize: ValueCtx requires a function taking context.Context first; use Value otherwise",
		}
	}
	core, err := newValueCore(fv, opts, true)
	if err != nil {
		return zero, err
	}
	wrapper := reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		ctx, _ := args[0].Interface().(context.Context)
		if ctx == nil {
			// The wrapped function must see the substituted context too.
			ctx = context.Background()
			args[0] = reflect.ValueOf(ctx)
		}
		return core.invoke(ctx, args[1:], args)
	})
	return wrapper.Interface().(F), nil
}

// MustValueCtx is ValueCtx that panics on a configuration error.
func MustValueCtx[F any](fn F, opts ...Option) F {
	wrapped, err := ValueCtx(fn, opts...)
	if err != nil {
		panic(err)
	}
	return wrapped
}
