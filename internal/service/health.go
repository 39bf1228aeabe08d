package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/observability/metrics"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

const (
	defaultProbeTimeout = 2 * time.Second
	healthProbeTTL      = 10 * time.Second
	healthProbePrefix   = "health:probe:"
)

// HealthServiceOptions groups dependencies for HealthService.
type HealthServiceOptions struct {
	DB        core.DatabaseProbe      // Required
	Store     core.CounterStore       // Required
	Artifacts core.ModelArtifactStore // Required
	// Scheduler is nil in processes that do not run jobs; the background
	// tasks component then reports an error.
	Scheduler    ScheduleView
	ProbeTimeout time.Duration
	Clock        data.TimeProvider
	Logger       *slog.Logger
	Metrics      statsd.Sink
}

// HealthService probes every component and synthesises an overall status.
// It holds no mutable state besides the singleflight group and is safe for
// concurrent use.
type HealthService struct {
	db        core.DatabaseProbe
	store     core.CounterStore
	artifacts core.ModelArtifactStore
	scheduler ScheduleView
	timeout   time.Duration
	clock     data.TimeProvider
	logger    *slog.Logger
	metrics   statsd.Sink

	models singleflight.Group
}

// NewHealthService constructs a HealthService.
func NewHealthService(opts HealthServiceOptions) (*HealthService, error) {
	switch {
	case opts.DB == nil:
		return nil, errors.New("DatabaseProbe is required")
	case opts.Store == nil:
		return nil, errors.New("CounterStore is required")
	case opts.Artifacts == nil:
		return nil, errors.New("ModelArtifactStore is required")
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		db:        opts.DB,
		store:     opts.Store,
		artifacts: opts.Artifacts,
		scheduler: opts.Scheduler,
		timeout:   timeout,
		clock:     clock,
		logger:    logger.With("component", "health"),
		metrics:   opts.Metrics,
	}, nil
}

// Check runs all probes concurrently and returns a fresh report.
func (s *HealthService) Check(ctx context.Context) model.HealthReport {
	report := model.HealthReport{Timestamp: s.clock.Now().UTC()}
	c := &report.Components

	var g errgroup.Group
	g.Go(func() error {
		c.Database = s.probeDatabase(ctx)
		return nil
	})
	g.Go(func() error {
		c.CounterStore = s.probeCounterStore(ctx)
		return nil
	})
	g.Go(func() error {
		c.BackgroundTasks = s.probeScheduler()
		return nil
	})
	g.Go(func() error {
		c.Models = s.probeModels(ctx)
		return nil
	})
	_ = g.Wait()

	report.Status = Overall(report.Components)
	if report.Status != model.HealthHealthy {
		s.logger.WarnContext(ctx, "health check not healthy",
			"status", string(report.Status),
			"database", string(c.Database.Status),
			"counter_store", string(c.CounterStore.Status),
			"background_tasks", string(c.BackgroundTasks.Status),
			"models", string(c.Models.Status),
		)
	}
	metrics.EmitHealthStatus(s.metrics, string(report.Status))
	return report
}

// Overall applies status precedence: database or counter store failures are
// unhealthy; scheduler or model problems are at most degraded.
func Overall(c model.HealthComponents) model.HealthStatus {
	if c.Database.Status != model.ComponentHealthy || c.CounterStore.Status != model.ComponentHealthy {
		return model.HealthUnhealthy
	}
	if c.BackgroundTasks.Status != model.ComponentHealthy || c.Models.Status != model.ComponentHealthy {
		return model.HealthDegraded
	}
	return model.HealthHealthy
}

func (s *HealthService) probeDatabase(ctx context.Context) model.ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.Probe(ctx); err != nil {
		return model.ComponentHealth{Status: model.ComponentError, Message: err.Error()}
	}
	return model.ComponentHealth{Status: model.ComponentHealthy}
}

// probeCounterStore round-trips a short-lived nonce.
func (s *HealthService) probeCounterStore(ctx context.Context) model.ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := healthProbePrefix + uuid.NewString()
	nonce := uuid.NewString()
	if err := s.store.Set(ctx, key, nonce, healthProbeTTL); err != nil {
		return model.ComponentHealth{Status: model.ComponentError, Message: fmt.Sprintf("set: %v", err)}
	}
	got, found, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		return model.ComponentHealth{Status: model.ComponentError, Message: fmt.Sprintf("get: %v", err)}
	case !found || got != nonce:
		return model.ComponentHealth{Status: model.ComponentError, Message: "probe value did not round trip"}
	}
	return model.ComponentHealth{Status: model.ComponentHealthy}
}

func (s *HealthService) probeScheduler() (out model.BackgroundTasksHealth) {
	defer func() {
		if r := recover(); r != nil {
			out = model.BackgroundTasksHealth{Status: model.ComponentError, Message: fmt.Sprint(r)}
		}
	}()

	if s.scheduler == nil {
		return model.BackgroundTasksHealth{Status: model.ComponentError, Message: "scheduler not running"}
	}
	jobs := s.scheduler.Jobs()
	if len(jobs) == 0 {
		return model.BackgroundTasksHealth{Status: model.ComponentError, Message: "no jobs registered"}
	}

	out = model.BackgroundTasksHealth{
		Status: model.ComponentHealthy,
		Jobs:   make(map[model.JobID]model.JobHealth, len(jobs)),
	}
	var unscheduled int
	for _, job := range jobs {
		out.Jobs[job.ID] = model.JobHealth{
			NextRun: job.NextRun,
			LastRun: job.LastRun,
			Status:  string(job.State),
		}
		if job.NextRun == nil {
			unscheduled++
		}
	}
	if unscheduled > 0 {
		out.Status = model.ComponentWarning
		out.Message = fmt.Sprintf("%d of %d jobs have no next run", unscheduled, len(jobs))
	}
	return out
}

// probeModels lists artifacts. Concurrent checks share one directory listing.
func (s *HealthService) probeModels(ctx context.Context) model.ModelsHealth {
	v, err, _ := s.models.Do("models", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.artifacts.List(ctx)
	})
	if err != nil {
		return model.ModelsHealth{Status: model.ComponentError, Message: err.Error()}
	}
	versions, _ := v.([]string)
	if len(versions) == 0 {
		return model.ModelsHealth{Status: model.ComponentWarning, Message: "no trained models found"}
	}
	return model.ModelsHealth{Status: model.ComponentHealthy, AvailableModels: versions}
}
