package memoize

import (
	"context"
	"time"

	"github.com/goforj/memoize/memocore"
)

// errorStorage is returned when a driver fails to initialize; it preserves
// the driver identity while surfacing the construction error on every call.
type errorStorage struct {
	driver memocore.Driver
	err    error
}

func newErrorStorage(driver memocore.Driver, err error) memocore.Storage {
	return &errorStorage{driver: driver, err: err}
}

func (e *errorStorage) Driver() memocore.Driver      { return e.driver }
func (e *errorStorage) Ready(context.Context) error  { return e.err }
func (e *errorStorage) Delete(context.Context, string) error { return e.err }

func (e *errorStorage) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, e.err
}

func (e *errorStorage) Set(context.Context, string, []byte, time.Duration) error {
	return e.err
}
