package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/observability/metrics"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

const rateLimitKeyPrefix = "rate_limit:"

// RateLimiterOptions groups dependencies for RateLimiter.
type RateLimiterOptions struct {
	Store   core.CounterStore      // Required
	Config  config.RateLimitConfig // Required
	Policy  FailurePolicy          // Optional: defaults to FailOpen
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RateLimiter is a fixed-window request limiter keyed by principal.
// The window's expiry is set once, by the increment that creates it.
type RateLimiter struct {
	store   core.CounterStore
	limit   int
	window  time.Duration
	guard   storeGuard
	logger  *slog.Logger
	metrics statsd.Sink
}

// LimitDecision is the typed outcome of one rate limit check.
type LimitDecision struct {
	Limited      bool
	Count        int64
	Limit        int
	Remaining    int
	ResetIn      time.Duration
	Availability Availability
}

// ResetSeconds rounds ResetIn up to whole seconds.
func (d LimitDecision) ResetSeconds() int {
	return int((d.ResetIn + time.Second - 1) / time.Second)
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(opts RateLimiterOptions) (*RateLimiter, error) {
	if opts.Store == nil {
		return nil, errors.New("CounterStore is required")
	}
	opts.Config.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rate_limiter")

	return &RateLimiter{
		store:   opts.Store,
		limit:   opts.Config.Requests,
		window:  opts.Config.Window,
		guard:   newStoreGuard("rate_limit", opts.Policy, logger, opts.Metrics),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Limit returns the configured request budget per window.
func (r *RateLimiter) Limit() int { return r.limit }

// Window returns the configured window length.
func (r *RateLimiter) Window() time.Duration { return r.window }

func rateLimitKey(principal string) string { return rateLimitKeyPrefix + principal }

// Check counts one request for principal and reports whether it is over the limit.
func (r *RateLimiter) Check(ctx context.Context, principal string) LimitDecision {
	key := rateLimitKey(principal)
	decision := LimitDecision{Limit: r.limit, Remaining: r.limit, ResetIn: r.window}

	count, err := r.store.IncrementWindow(ctx, key, r.window)
	if decision.Availability = r.guard.availability(ctx, key, err); decision.Availability == Unavailable {
		decision.Limited = !r.guard.allow()
		return decision
	}

	decision.Count = count
	decision.Remaining = remaining(r.limit, count)
	decision.Limited = count > int64(r.limit)

	// Reset is informational; a failed TTL read falls back to the full window.
	if ttl, ttlErr := r.store.TTL(ctx, key); ttlErr == nil && ttl > 0 {
		decision.ResetIn = ttl
	}

	if decision.Limited {
		r.logger.WarnContext(ctx, "rate limit exceeded", "principal", principal, "count", count, "limit", r.limit)
		metrics.EmitRateLimited(r.metrics)
	}
	return decision
}

// IsRateLimited counts one request for principal and reports whether it exceeds the limit.
func (r *RateLimiter) IsRateLimited(ctx context.Context, principal string) bool {
	return r.Check(ctx, principal).Limited
}

// GetRemainingRequests returns the requests left in principal's current window
// without counting one. With no window, or no store, it returns the full limit.
func (r *RateLimiter) GetRemainingRequests(ctx context.Context, principal string) int {
	left, _, _ := r.Peek(ctx, principal)
	return left
}

// Peek reads principal's window without counting a request.
func (r *RateLimiter) Peek(ctx context.Context, principal string) (int, time.Duration, Availability) {
	key := rateLimitKey(principal)
	value, found, err := r.store.Get(ctx, key)
	if avail := r.guard.availability(ctx, key, err); avail == Unavailable {
		return r.limit, r.window, avail
	}
	if !found {
		return r.limit, r.window, Available
	}
	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.logger.ErrorContext(ctx, "rate limit counter is not an integer", "key", key, "value", value)
		return r.limit, r.window, Available
	}
	resetIn := r.window
	if ttl, ttlErr := r.store.TTL(ctx, key); ttlErr == nil && ttl > 0 {
		resetIn = ttl
	}
	return remaining(r.limit, count), resetIn, Available
}

func remaining(limit int, count int64) int {
	left := int64(limit) - count
	if left < 0 {
		return 0
	}
	return int(left)
}
