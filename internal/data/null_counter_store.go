package data

import (
	"context"
	"time"

	"github.com/quantsignal/forecast-api/internal/core"
)

// NullCounterStore is selected when no counter backend is configured or reachable.
// Every call fails with core.ErrStoreUnavailable.
type NullCounterStore struct{}

var _ core.CounterStore = NullCounterStore{}

func (NullCounterStore) Increment(context.Context, string) (int64, error) {
	return 0, core.ErrStoreUnavailable
}

func (NullCounterStore) IncrementWindow(context.Context, string, time.Duration) (int64, error) {
	return 0, core.ErrStoreUnavailable
}

func (NullCounterStore) Expire(context.Context, string, time.Duration) error {
	return core.ErrStoreUnavailable
}

func (NullCounterStore) Get(context.Context, string) (string, bool, error) {
	return "", false, core.ErrStoreUnavailable
}

func (NullCounterStore) Set(context.Context, string, string, time.Duration) error {
	return core.ErrStoreUnavailable
}

func (NullCounterStore) Delete(context.Context, ...string) (int64, error) {
	return 0, core.ErrStoreUnavailable
}

func (NullCounterStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, core.ErrStoreUnavailable
}

func (NullCounterStore) Scan(context.Context, string) ([]string, error) {
	return nil, core.ErrStoreUnavailable
}
