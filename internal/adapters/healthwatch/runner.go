// Package healthwatch provides the adapter that runs the periodic health watcher.
package healthwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/adapters/healthclient"
	"github.com/quantsignal/forecast-api/internal/service"
)

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Config config.HealthWatchConfig
	Logger *slog.Logger

	// Local checks this process's components. It is used when Config.URL is empty.
	Local    service.HealthChecker
	Notifier service.HealthChangeNotifier
}

// Runner evaluates health on an interval and notifies on transitions.
type Runner struct {
	watcher *service.HealthWatcher
	logger  *slog.Logger
}

// NewRunner creates a new health watch runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Config.Sanitize()

	checker, err := wireChecker(opts)
	if err != nil {
		return nil, fmt.Errorf("wire health checker: %w", err)
	}

	watcher, err := service.NewHealthWatcher(service.HealthWatcherOptions{
		Checker:          checker,
		Notifier:         opts.Notifier,
		NotifyOnRecovery: opts.Config.NotifyOnRecovery,
		Interval:         opts.Config.Interval,
		Logger:           opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Runner{watcher: watcher, logger: opts.Logger}, nil
}

func wireChecker(opts RunnerOptions) (service.HealthChecker, error) {
	if opts.Config.URL != "" {
		return healthclient.New(healthclient.Config{
			URL:     opts.Config.URL,
			Timeout: opts.Config.Timeout,
			Logger:  opts.Logger,
		})
	}
	if opts.Local == nil {
		return nil, errors.New("a local health checker or HEALTH_WATCH_URL is required")
	}
	return opts.Local, nil
}

// Run starts the watch loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting health watch runner")
	return r.watcher.Run(ctx)
}
