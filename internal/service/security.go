package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/observability/metrics"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

const failedAttemptsKeyPrefix = "failed_attempts:"

// SecurityTrackerOptions groups dependencies for SecurityTracker.
type SecurityTrackerOptions struct {
	Store   core.CounterStore     // Required
	Config  config.SecurityConfig // Required
	Policy  FailurePolicy         // Optional: defaults to FailOpen
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// SecurityTracker counts failed authentication attempts per identifier in a
// short fixed window. Crossing the threshold is reported, never enforced.
type SecurityTracker struct {
	store   core.CounterStore
	limit   int
	window  time.Duration
	guard   storeGuard
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewSecurityTracker constructs a SecurityTracker.
func NewSecurityTracker(opts SecurityTrackerOptions) (*SecurityTracker, error) {
	if opts.Store == nil {
		return nil, errors.New("CounterStore is required")
	}
	opts.Config.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "security_tracker")

	return &SecurityTracker{
		store:   opts.Store,
		limit:   opts.Config.FailedAttemptsLimit,
		window:  opts.Config.Window,
		guard:   newStoreGuard("security_tracker", opts.Policy, logger, opts.Metrics),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// TrackFailedAttempt records one failure for identifier and reports whether
// the identifier has reached the suspicious threshold in the current window.
// When the store is unavailable it reports false.
func (s *SecurityTracker) TrackFailedAttempt(ctx context.Context, identifier string) bool {
	key := failedAttemptsKeyPrefix + identifier
	count, err := s.store.IncrementWindow(ctx, key, s.window)
	if s.guard.availability(ctx, key, err) == Unavailable {
		return false
	}
	if count < int64(s.limit) {
		return false
	}
	s.logger.WarnContext(ctx, "multiple failed attempts detected",
		"identifier", identifier,
		"count", count,
		"window", s.window,
	)
	if count == int64(s.limit) {
		metrics.EmitSuspicious(s.metrics)
	}
	return true
}
