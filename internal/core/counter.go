// Package core holds the ports the forecast services depend on. The data and
// adapters packages provide the implementations.
package core

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned by a CounterStore that could not complete a
// call within its timeout or could not reach its backend.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// CounterStore is an atomic key/value/counter service.
// Every call is bounded by a short timeout. Implementations must wrap
// ErrStoreUnavailable for timeouts and connection failures so callers can
// choose a failure policy with errors.Is.
type CounterStore interface {
	// Increment atomically adds one to key and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)

	// IncrementWindow atomically adds one to key and, only when the
	// increment created the key, sets its expiry to window. The whole
	// operation is a single round trip.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Get returns the value of key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes keys, returning how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// TTL returns the remaining lifetime of key, or a negative duration if
	// the key has no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Scan returns every key starting with prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)
}
