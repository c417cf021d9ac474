package memoize

import (
	"fmt"

	"github.com/goforj/memoize/memocore"
)

// ConfigurationError is re-exported so callers matching decorator errors do
// not need to import memocore.
type ConfigurationError = memocore.ConfigurationError

// CacheError wraps an unexpected failure from storage get/set or from
// decoding a stored record. It always carries the offending key and the
// original cause. Configuration errors are never wrapped into a CacheError.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("memoize: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// UnserializableReturnValueError reports that a wrapped function produced a
// value the codec cannot serialize. The logical call is considered failed and
// nothing is written to storage.
type UnserializableReturnValueError struct {
	Function string
	Value    any
	Err      error
}

func (e *UnserializableReturnValueError) Error() string {
	return fmt.Sprintf("memoize: return value of %s (%T) is not serializable: %v", e.Function, e.Value, e.Err)
}

func (e *UnserializableReturnValueError) Unwrap() error { return e.Err }
