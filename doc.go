// Package memoize provides call-level memoization over pluggable storage
// backends, plus a process-wide reference cache for memoizing resource
// factories as singletons.
//
// Value wraps a function so that repeated calls with equal arguments return a
// previously computed result deserialized from storage instead of recomputing
// it:
//
//	double, _ := memoize.Value(func(x int) (int, error) {
//		return expensive(x), nil
//	})
//	n, _ := double(3) // miss: computes, stores serialized result
//	n, _ = double(3)  // hit: decoded copy from storage
//
// ValueCtx is the context-aware variant; the caller's context flows through
// guard acquisition and storage access, so cancellation propagates.
//
// Reference memoizes a factory so that every caller receives the same
// instance, constructed at most once even under concurrent first access:
//
//	client := memoize.Reference(func() (*redis.Client, error) {
//		return redis.NewClient(&redis.Options{Addr: addr}), nil
//	})
//
// Storage backends live behind the memocore.Storage contract. The memory,
// file, redis and null drivers ship in this package; bolt, NATS, DynamoDB and
// SQL drivers live under driver/.
package memoize
