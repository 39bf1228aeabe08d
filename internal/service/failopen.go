package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/observability/metrics"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

// Availability reports whether a counter-backed gate could consult its store.
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
)

// FailurePolicy decides what a gate does when its counter store fails.
type FailurePolicy string

const (
	// FailOpen lets the request through and logs a warning.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed denies the request.
	FailClosed FailurePolicy = "fail_closed"
)

// storeGuard applies a FailurePolicy to counter store errors for one named gate.
type storeGuard struct {
	gate    string
	policy  FailurePolicy
	logger  *slog.Logger
	metrics statsd.Sink
}

func newStoreGuard(gate string, policy FailurePolicy, logger *slog.Logger, sink statsd.Sink) storeGuard {
	if policy == "" {
		policy = FailOpen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return storeGuard{gate: gate, policy: policy, logger: logger, metrics: sink}
}

// availability classifies a store error. Errors that are not
// ErrStoreUnavailable (bad stored value, script error) are treated the same
// way but logged at error level.
func (g storeGuard) availability(ctx context.Context, key string, err error) Availability {
	if err == nil {
		return Available
	}
	level := slog.LevelWarn
	if !errors.Is(err, core.ErrStoreUnavailable) {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "counter store call failed",
		"gate", g.gate,
		"policy", string(g.policy),
		"store", "counter",
		"key", key,
		"error", err,
	)
	if g.policy == FailOpen {
		metrics.EmitFailOpen(g.metrics, g.gate)
	}
	return Unavailable
}

// allow reports whether a gate should pass when the store is unavailable.
func (g storeGuard) allow() bool {
	return g.policy == FailOpen
}
