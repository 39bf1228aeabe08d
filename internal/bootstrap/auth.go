package bootstrap

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/adapters/authroles"
	"github.com/quantsignal/forecast-api/internal/adapters/devauth"
	"github.com/quantsignal/forecast-api/internal/adapters/oidc"
	redisadapter "github.com/quantsignal/forecast-api/internal/adapters/redis"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/ports"
	"github.com/quantsignal/forecast-api/internal/service"
)

// AuthConfig contains configuration for auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Principals  core.PrincipalRepository
	Logger      *slog.Logger
}

// BuildAuthService creates an auth service based on the configured auth mode.
// Returns nil if auth is not configured or configuration is invalid; key
// management routes are then not mounted.
func BuildAuthService(ctx context.Context, cfg AuthConfig) *service.AuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RedisClient == nil {
		logger.Warn("auth service disabled: redis client not configured", "mode", cfg.Auth.Mode)
		return nil
	}
	if cfg.Principals == nil {
		logger.Warn("auth service disabled: principal repository not configured", "mode", cfg.Auth.Mode)
		return nil
	}

	sessions, err := redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{Client: cfg.RedisClient})
	if err != nil {
		logger.Warn("failed to create session store, auth disabled", "error", err)
		return nil
	}

	var prov ports.AuthProvider
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		prov = buildDevAuthProvider(cfg.Auth, logger)
	case config.AuthModeOAuth:
		prov = buildOAuthProvider(ctx, cfg.Auth, logger)
	}
	if prov == nil {
		return nil
	}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Provider: prov,
		Sessions: sessions,
		Roles: authroles.StaticRoleMapper{
			AdminGroup: cfg.Auth.AdminGroup,
			UserGroup:  cfg.Auth.UserGroup,
		},
		Principals: cfg.Principals,
		Logger:     logger,
	})
	if err != nil {
		logger.Warn("failed to create auth service, auth disabled", "error", err)
		return nil
	}
	return svc
}

//nolint:ireturn // nil signals a disabled provider.
func buildDevAuthProvider(cfg config.AuthConfig, logger *slog.Logger) ports.AuthProvider {
	logger.Warn("dev auth enabled; every login maps to the configured identity", "subject", cfg.DevAuth.Subject)
	prov, err := devauth.NewProvider(devauth.Config{
		Subject: cfg.DevAuth.Subject,
		Email:   cfg.DevAuth.Email,
		Groups:  cfg.DevAuth.Groups,
	})
	if err != nil {
		logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
		return nil
	}
	return prov
}

//nolint:ireturn // nil signals a disabled provider.
func buildOAuthProvider(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) ports.AuthProvider {
	oauth := cfg.OAuth
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
			"discovery_url_empty", oauth.DiscoveryURL == "",
			"client_id_empty", oauth.ClientID == "",
			"client_secret_empty", oauth.ClientSecret == "",
		)
		return nil
	}

	prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
	})
	if err != nil {
		logger.Warn("failed to create OIDC provider, auth disabled", "error", err)
		return nil
	}
	return prov
}
