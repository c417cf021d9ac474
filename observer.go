package memoize

import (
	"context"
	"time"

	"github.com/goforj/memoize/memocore"
)

// Observer receives events for memoized call storage operations. It is
// invoked after each storage access completes; a write failure that does not
// fail the logical call is still reported here.
type Observer interface {
	OnCall(ctx context.Context, function, key, op string, hit bool, err error, dur time.Duration, driver memocore.Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, function, key, op string, hit bool, err error, dur time.Duration, driver memocore.Driver)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, function, key, op string, hit bool, err error, dur time.Duration, driver memocore.Driver) {
	if f == nil {
		return
	}
	f(ctx, function, key, op, hit, err, dur, driver)
}
