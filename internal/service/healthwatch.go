package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quantsignal/forecast-api/internal/domain/model"
)

// HealthChecker produces a health report. *HealthService satisfies it.
type HealthChecker interface {
	Check(ctx context.Context) model.HealthReport
}

// HealthChangeNotifier receives overall status transitions. *failurenotifier.Service satisfies it.
type HealthChangeNotifier interface {
	NotifyHealthChange(ctx context.Context, prev model.HealthStatus, report model.HealthReport)
}

// HealthWatcherOptions groups dependencies for HealthWatcher.
type HealthWatcherOptions struct {
	Checker          HealthChecker        // Required
	Notifier         HealthChangeNotifier // Optional: transitions are only logged when nil
	NotifyOnRecovery bool
	Interval         time.Duration // Required by Run
	Logger           *slog.Logger
}

// HealthWatcher evaluates health periodically and notifies when the overall
// status changes. It starts from healthy, so the first non-healthy report
// notifies.
type HealthWatcher struct {
	checker          HealthChecker
	notifier         HealthChangeNotifier
	notifyOnRecovery bool
	interval         time.Duration
	logger           *slog.Logger

	mu   sync.Mutex
	last model.HealthStatus
}

// NewHealthWatcher constructs a HealthWatcher.
func NewHealthWatcher(opts HealthWatcherOptions) (*HealthWatcher, error) {
	if opts.Checker == nil {
		return nil, errors.New("HealthChecker is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthWatcher{
		checker:          opts.Checker,
		notifier:         opts.Notifier,
		notifyOnRecovery: opts.NotifyOnRecovery,
		interval:         opts.Interval,
		logger:           logger.With("component", "health_watch"),
		last:             model.HealthHealthy,
	}, nil
}

// Tick runs one evaluation. It reports whether a transition was observed.
func (w *HealthWatcher) Tick(ctx context.Context) (model.HealthReport, bool) {
	report := w.checker.Check(ctx)

	w.mu.Lock()
	prev := w.last
	w.last = report.Status
	w.mu.Unlock()

	if prev == report.Status {
		return report, false
	}

	w.logger.WarnContext(ctx, "health status changed",
		"from", string(prev),
		"to", string(report.Status),
	)
	if w.notifier == nil {
		return report, true
	}
	if report.Status == model.HealthHealthy && !w.notifyOnRecovery {
		return report, true
	}
	w.notifier.NotifyHealthChange(ctx, prev, report)
	return report, true
}

// Last returns the most recently observed overall status.
func (w *HealthWatcher) Last() model.HealthStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Run evaluates health once after a short jitter and then every interval
// until ctx is cancelled.
func (w *HealthWatcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("health watch interval must be positive")
	}
	w.logger.InfoContext(ctx, "starting health watcher", "interval", w.interval)

	w.waitWithJitter(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			w.Tick(ctx)
		}
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "health watcher stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitWithJitter sleeps up to 10% of the interval so replicas do not probe in lockstep.
func (w *HealthWatcher) waitWithJitter(ctx context.Context) {
	maxJitter := int64(w.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		w.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
