package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/adapters/marketdata"
	"github.com/quantsignal/forecast-api/internal/adapters/predictor"
	"github.com/quantsignal/forecast-api/internal/adapters/scheduler"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/observability/notify/pagerduty"
	"github.com/quantsignal/forecast-api/internal/observability/notify/slack"
	"github.com/quantsignal/forecast-api/internal/observability/prom"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
	"github.com/quantsignal/forecast-api/internal/service"
	"github.com/quantsignal/forecast-api/internal/service/failurenotifier"
)

const metricsNamespace = "forecast"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Store    core.CounterStore
	Keys     *service.APIKeyService
	Limiter  *service.RateLimiter
	Security *service.SecurityTracker
	Forecast *service.ForecastService
	Jobs     *service.JobHandlers
	Health   *service.HealthService

	// Auth is nil when owner login is not configured.
	Auth *service.AuthService

	// Scheduler is nil unless jobs run in this process.
	Scheduler *scheduler.Runner

	Observability ObservabilityContainer
}

// ObservabilityContainer holds metrics sinks and the failure notifier.
type ObservabilityContainer struct {
	// Metrics fans out to statsd and Prometheus; statsd.Discard when both are off.
	Metrics         statsd.Sink
	MetricsHandler  http.Handler
	StatsdClient    *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// Close releases the statsd socket.
func (o ObservabilityContainer) Close() error {
	if o.StatsdClient == nil {
		return nil
	}
	return o.StatsdClient.Close()
}

// ServiceDeps contains dependencies for creating services.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional: null counter store and no owner login when nil
	Logger      *slog.Logger

	// WithScheduler builds the scheduler even when the scheduler service mode is off.
	WithScheduler bool
}

// serviceRepositories groups repositories used to build services.
type serviceRepositories struct {
	APIKeys       *data.APIKeyRepo
	Predictions   *data.PredictionRepo
	MarketData    *data.MarketDataRepo
	ModelVersions *data.ModelVersionRepo
	Principals    *data.PrincipalRepo
	Artifacts     *data.FileArtifactStore
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, cfg *config.AppConfig) *serviceRepositories {
	return &serviceRepositories{
		APIKeys:       data.NewAPIKeyRepo(db),
		Predictions:   data.NewPredictionRepo(db),
		MarketData:    data.NewMarketDataRepo(db),
		ModelVersions: data.NewModelVersionRepo(db),
		Principals:    data.NewPrincipalRepo(db),
		Artifacts:     data.NewFileArtifactStore(cfg.Models.Dir),
	}
}

// buildCounterStore picks Redis when connected and the null store otherwise.
//
//nolint:ireturn // callers only need the port.
func buildCounterStore(client redis.UniversalClient, cfg config.RedisConfig, logger *slog.Logger) core.CounterStore {
	if client == nil {
		logger.Warn("redis not connected, using null counter store",
			"policy", "fail_open",
			"store", "counter",
		)
		return data.NullCounterStore{}
	}
	return data.NewRedisCounterStore(client, cfg.OpTimeout)
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	var (
		sinks []statsd.Sink
		out   ObservabilityContainer
	)

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  metricsNamespace,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.StatsdClient = client
			sinks = append(sinks, client)
		}
	}

	if cfg.Metrics.PrometheusEnabled {
		reg := prom.NewRegistry()
		sinks = append(sinks, prom.NewSink(reg, metricsNamespace, logger))
		out.MetricsHandler = prom.Handler(reg)
	}

	out.Metrics = statsd.Multi(sinks...)
	out.FailureNotifier = buildFailureNotifier(logger, cfg.Notifications)
	return out
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: logger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
			HealthURL:  cfg.Slack.HealthURL,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Endpoint:   cfg.PagerDuty.Endpoint,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:      logger,
		Sinks:       sinks,
		ServiceName: cfg.PagerDuty.Component,
	})
}

// gateServices are the key, rate limit and failed-attempt services.
type gateServices struct {
	keys     *service.APIKeyService
	limiter  *service.RateLimiter
	security *service.SecurityTracker
}

func newGateServices(cfg *config.AppConfig, repos *serviceRepositories, store core.CounterStore, obs ObservabilityContainer, logger *slog.Logger) (gateServices, error) {
	keys, err := service.NewAPIKeyService(service.APIKeyServiceOptions{
		Repo:      repos.APIKeys,
		Hasher:    CreateKeyHasher(cfg.APIKeys.Pepper, logger),
		Config:    cfg.APIKeys,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return gateServices{}, fmt.Errorf("api key service: %w", err)
	}

	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Store:   store,
		Config:  cfg.RateLimit,
		Logger:  logger,
		Metrics: obs.Metrics,
	})
	if err != nil {
		return gateServices{}, fmt.Errorf("rate limiter: %w", err)
	}

	security, err := service.NewSecurityTracker(service.SecurityTrackerOptions{
		Store:   store,
		Config:  cfg.Security,
		Logger:  logger,
		Metrics: obs.Metrics,
	})
	if err != nil {
		return gateServices{}, fmt.Errorf("security tracker: %w", err)
	}

	return gateServices{keys: keys, limiter: limiter, security: security}, nil
}

// modelServices are the forecast service and the scheduled job bodies, which
// share the predictor client and artifact store.
type modelServices struct {
	forecast *service.ForecastService
	jobs     *service.JobHandlers
}

func newModelServices(cfg *config.AppConfig, repos *serviceRepositories, store core.CounterStore, keys service.KeySweeper, logger *slog.Logger) (modelServices, error) {
	predictorClient, err := predictor.New(cfg.Predictor, nil)
	if err != nil {
		return modelServices{}, fmt.Errorf("predictor client: %w", err)
	}

	source, err := marketdata.New(marketdata.Options{Config: cfg.MarketData, Logger: logger})
	if err != nil {
		return modelServices{}, fmt.Errorf("market data source: %w", err)
	}

	forecast, err := service.NewForecastService(service.ForecastServiceOptions{
		Predictions:   repos.Predictions,
		ModelVersions: repos.ModelVersions,
		Artifacts:     repos.Artifacts,
		Predictor:     predictorClient,
		Store:         store,
		Logger:        logger,
	})
	if err != nil {
		return modelServices{}, fmt.Errorf("forecast service: %w", err)
	}

	jobs, err := service.NewJobHandlers(service.JobHandlersOptions{
		Predictions:   repos.Predictions,
		MarketData:    repos.MarketData,
		ModelVersions: repos.ModelVersions,
		Keys:          keys,
		Predictor:     predictorClient,
		Artifacts:     repos.Artifacts,
		Source:        source,
		Store:         store,
		Config:        cfg.Jobs,
		Logger:        logger,
	})
	if err != nil {
		return modelServices{}, fmt.Errorf("job handlers: %w", err)
	}

	return modelServices{forecast: forecast, jobs: jobs}, nil
}

// NewServices wires every service for the process described by deps.Config.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	repos := buildRepositories(deps.DB, cfg)
	store := buildCounterStore(deps.RedisClient, cfg.Redis, logger)
	obs := buildObservability(logger, cfg.Observability)

	gate, err := newGateServices(cfg, repos, store, obs, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	models, err := newModelServices(cfg, repos, store, gate.keys, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	var runner *scheduler.Runner
	if deps.WithScheduler || cfg.IsSchedulerEnabled() {
		runner, err = scheduler.NewRunner(scheduler.RunnerOptions{
			Jobs:     models.jobs,
			Store:    store,
			Config:   cfg.Jobs,
			Logger:   logger,
			Metrics:  obs.Metrics,
			Notifier: obs.FailureNotifier,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("scheduler: %w", err)
		}
	}

	healthOpts := service.HealthServiceOptions{
		DB:        data.DBProbe{DB: deps.DB},
		Store:     store,
		Artifacts: repos.Artifacts,
		Logger:    logger,
		Metrics:   obs.Metrics,
	}
	if runner != nil {
		healthOpts.Scheduler = runner.Scheduler()
	}
	health, err := service.NewHealthService(healthOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("health service: %w", err)
	}

	auth := BuildAuthService(ctx, AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: deps.RedisClient,
		Principals:  repos.Principals,
		Logger:      logger,
	})

	return ServiceContainer{
		Store:         store,
		Keys:          gate.keys,
		Limiter:       gate.limiter,
		Security:      gate.security,
		Forecast:      models.forecast,
		Jobs:          models.jobs,
		Health:        health,
		Auth:          auth,
		Scheduler:     runner,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newSchedulerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeScheduler,
		name: "scheduler",
		start: func(ctx context.Context) error {
			return RunScheduler(ctx, deps.cfg.Services.Scheduler)
		},
	}
}

func newHealthWatchBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeHealthWatch,
		name: "health watcher",
		start: func(ctx context.Context) error {
			var watchCfg config.HealthWatchConfig
			if deps.cfg.Config != nil {
				watchCfg = deps.cfg.Config.HealthWatch
			}
			return RunHealthWatch(ctx, HealthWatchRunnerConfig{
				Config:   watchCfg,
				Local:    deps.cfg.Services.Health,
				Notifier: deps.cfg.Services.Observability.FailureNotifier,
				Logger:   deps.logger,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil || deps.cfg == nil {
		return nil
	}
	return []backgroundService{
		newSchedulerBackgroundService(deps),
		newHealthWatchBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// It blocks until a shutdown signal arrives, ctx is cancelled or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for a shutdown signal, context cancellation or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case <-cfg.ctx.Done():
		cfg.logger.Info("context cancelled, shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		// The service context is already cancelled; shutdown gets its own budget.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
