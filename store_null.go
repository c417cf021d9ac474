package memoize

import (
	"context"
	"time"

	"github.com/goforj/memoize/memocore"
)

// nullStorage never hits and drops writes; every call recomputes.
type nullStorage struct{}

func newNullStorage() memocore.Storage { return nullStorage{} }

func (nullStorage) Driver() memocore.Driver     { return memocore.DriverNull }
func (nullStorage) Ready(context.Context) error { return nil }

func (nullStorage) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (nullStorage) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (nullStorage) Delete(context.Context, string) error { return nil }
