// Package httpx provides the HTTP surface of the forecast API: routing,
// the credential and rate limit pipeline, and JSON handlers.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
	"github.com/quantsignal/forecast-api/internal/service"
)

// KeyService covers both key validation and owner key management.
// *service.APIKeyService satisfies it.
type KeyService interface {
	KeyValidator
	KeyManager
}

// RouterServices holds everything the HTTP router needs. Optional groups
// are left unset in processes that do not serve them; their routes are then
// not mounted.
type RouterServices struct {
	Health service.HealthChecker // Required

	// Tasks is set only when the scheduler runs in this process.
	Tasks TaskMetricsSource

	// API key gate. Keys and Limiter are required together.
	Keys     KeyService
	Limiter  *service.RateLimiter
	Security FailedAttemptTracker
	Forecast Forecaster

	// Auth enables /auth/*, key management and the admin routes.
	Auth         AuthServiceInterface
	CookieDomain string

	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Metrics        statsd.Sink
	Logger         *slog.Logger
}

// NewRouter builds the chi router. The gated pipeline runs in order:
// APIKeyAuth, RateLimitGate, handler.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if services.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(Recover(logger), Logging(logger))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("route not found")})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{
			Code:    http.StatusMethodNotAllowed,
			ErrCode: "method_not_allowed",
			Err:     errors.New("method not allowed"),
		})
	})

	health := &HealthHandlers{Checker: services.Health, Tasks: services.Tasks}
	r.Get("/healthz", livenessHandler)
	r.Head("/healthz", livenessHandler)
	r.Get("/health", health.Check)
	r.Get("/health/check", health.Check)
	if services.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", services.MetricsHandler)
	}

	if services.Auth != nil {
		registerAuthRoutes(r, &AuthHandlers{
			Svc:          services.Auth,
			CookieDomain: services.CookieDomain,
			Logger:       logger,
		})
	}

	r.Route("/api/v1", func(api chi.Router) {
		if services.Keys != nil && services.Limiter != nil {
			registerGatedRoutes(api, services, logger)
		}
		if services.Auth != nil {
			registerSessionRoutes(api, services, health, logger)
		}
	})
	return r
}

func registerAuthRoutes(r chi.Router, h *AuthHandlers) {
	r.Route("/auth", func(a chi.Router) {
		a.Get("/login", h.Login)
		a.Get("/callback", h.Callback)
		a.Get("/logout", h.Logout)
		a.Post("/logout", h.Logout)
		a.Get("/status", h.Status)
	})
}

// registerGatedRoutes mounts the API-key authenticated routes. Key status
// skips the rate limit gate so callers can inspect an exhausted quota.
func registerGatedRoutes(api chi.Router, services RouterServices, logger *slog.Logger) {
	keys := &KeyHandlers{Svc: services.Keys, Limiter: services.Limiter, Logger: logger}
	api.Group(func(g chi.Router) {
		g.Use(APIKeyAuth(APIKeyAuthOptions{
			Keys:    services.Keys,
			Tracker: services.Security,
			Metrics: services.Metrics,
			Logger:  logger,
		}))
		g.Get("/keys/status", keys.Status)

		if services.Forecast == nil {
			return
		}
		models := &ModelHandlers{Svc: services.Forecast, Logger: logger}
		g.Group(func(gated chi.Router) {
			gated.Use(RateLimitGate(services.Limiter))
			gated.Get("/models", models.List)
			gated.Post("/predict", models.Predict)
		})
	})
}

func registerSessionRoutes(api chi.Router, services RouterServices, health *HealthHandlers, logger *slog.Logger) {
	if services.Keys != nil {
		keys := &KeyHandlers{Svc: services.Keys, Limiter: services.Limiter, Logger: logger}
		api.Group(func(g chi.Router) {
			g.Use(RequireAuth(services.Auth))
			g.Post("/keys", keys.Create)
			g.Get("/keys", keys.List)
			g.Delete("/keys/{key}", keys.Revoke)
		})
	}
	api.With(RequireRole(services.Auth, domainauth.RoleAdmin)).Get("/tasks/metrics", health.TaskMetrics)
}
