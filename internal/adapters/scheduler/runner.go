// Package scheduler wires the job registry, executor and scheduler loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
	"github.com/quantsignal/forecast-api/internal/service"
)

// JobSource supplies the registrations to schedule. *service.JobHandlers satisfies it.
type JobSource interface {
	Registrations() []service.JobRegistration
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Jobs   JobSource         // Required
	Store  core.CounterStore // Required: task status keys
	Config config.JobsConfig // TaskTimeout and HistoryLimit
	Logger *slog.Logger

	Metrics  statsd.Sink
	Notifier service.JobFailureNotifier
	Clock    data.TimeProvider
}

// Runner owns the scheduler for the process. Other components read job
// state through Scheduler().
type Runner struct {
	executor  *service.TaskExecutor
	scheduler *service.SchedulerService
	logger    *slog.Logger
	metrics   statsd.Sink
	clock     data.TimeProvider
}

// NewRunner builds the executor and scheduler and registers every job.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	executor, err := service.NewTaskExecutor(service.TaskExecutorOptions{
		Store:        opts.Store,
		Timeout:      opts.Config.TaskTimeout,
		HistoryLimit: opts.Config.HistoryLimit,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		Notifier:     opts.Notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("wire task executor: %w", err)
	}

	sched, err := service.NewSchedulerService(service.SchedulerServiceOptions{
		Executor: executor,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire scheduler: %w", err)
	}

	for _, reg := range opts.Jobs.Registrations() {
		if err := sched.Register(reg); err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.ID, err)
		}
	}

	return &Runner{
		executor:  executor,
		scheduler: sched,
		logger:    opts.Logger.With("component", "scheduler_runner"),
		metrics:   opts.Metrics,
		clock:     opts.Clock,
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	switch {
	case opts.Jobs == nil:
		return errors.New("job source is required")
	case opts.Store == nil:
		return errors.New("counter store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = &data.RealTimeProvider{}
	}
	return nil
}

// Scheduler exposes the registry for health checks, admin endpoints and the CLI.
func (r *Runner) Scheduler() *service.SchedulerService { return r.scheduler }

// Run drives the scheduler until ctx is cancelled, then waits for pending
// failure notifications.
func (r *Runner) Run(ctx context.Context) error {
	for _, job := range r.scheduler.Jobs() {
		r.logger.InfoContext(ctx, "job registered",
			"job_id", string(job.ID),
			"trigger", job.Trigger,
			"state", string(job.State),
		)
	}

	start := r.clock.Now()
	if r.metrics != nil {
		r.metrics.Gauge("scheduler.running", 1, nil)
	}

	err := r.scheduler.Run(ctx)
	r.executor.Wait()

	if r.metrics != nil {
		r.metrics.Gauge("scheduler.running", 0, nil)
	}
	r.logger.InfoContext(ctx, "scheduler runner stopped",
		"uptime", r.clock.Now().Sub(start).Round(time.Second).String(),
	)
	return err
}
