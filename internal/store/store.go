// Package store defines the contracts for the shared cross-process store:
// windowed counters for rate limiting, atomic click hashes, and the
// publish/subscribe broker used to fan events out to sibling server
// processes. Two implementations exist: Redis (production, multi-process)
// and an in-memory variant (tests and single-node development).
//
// The interfaces are intentionally narrow. Components depend on exactly the
// capability they use, so a fake in a test file only has to implement one or
// two methods.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable wraps any backend failure so callers can classify store
// outages separately from domain errors.
var ErrUnavailable = errors.New("shared store unavailable")

// Counter provides fixed-window counters. The first increment of a key
// creates it with the window as TTL; later increments within the window
// reuse the existing expiry. Expiry handles cleanup, no manual GC.
type Counter interface {
	// IncrWindow atomically increments key and returns the new count.
	// windowMillis bounds the key's lifetime on first creation.
	IncrWindow(ctx context.Context, key string, windowMillis int64) (int64, error)
}

// ClickStore provides the atomic hash operations behind click aggregation.
type ClickStore interface {
	// HIncrBy atomically adds n to a hash field and returns the new value.
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)

	// HGetAll returns all fields of a hash, or an empty map when absent.
	HGetAll(ctx context.Context, key string) (map[string]int64, error)
}

// Broker is the shared publish/subscribe mechanism. Subscribe runs until
// ctx is cancelled, invoking handler for every message on the channel;
// message ordering across publishers is not guaranteed.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
}

// Store bundles every shared-store capability. The Redis and memory
// backends implement it in full; most components take one of the narrow
// interfaces above instead.
type Store interface {
	Counter
	ClickStore
	Broker
}
