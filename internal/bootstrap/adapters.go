package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/adapters/healthwatch"
	"github.com/quantsignal/forecast-api/internal/adapters/scheduler"
	"github.com/quantsignal/forecast-api/internal/service"
)

// RunScheduler drives the job scheduler until ctx is cancelled.
func RunScheduler(ctx context.Context, runner *scheduler.Runner) error {
	if runner == nil {
		return errors.New("scheduler is not configured")
	}
	return runner.Run(ctx)
}

// HealthWatchRunnerConfig contains configuration for the health watcher.
type HealthWatchRunnerConfig struct {
	Config config.HealthWatchConfig
	// Local is probed when Config.URL is empty.
	Local    *service.HealthService
	Notifier service.HealthChangeNotifier
	Logger   *slog.Logger
}

// RunHealthWatch evaluates health on an interval and notifies on transitions.
func RunHealthWatch(ctx context.Context, cfg HealthWatchRunnerConfig) error {
	opts := healthwatch.RunnerOptions{
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Notifier: cfg.Notifier,
	}
	if cfg.Local != nil {
		opts.Local = cfg.Local
	}
	runner, err := healthwatch.NewRunner(opts)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
