package config

import (
	"os"
	"strings"
)

// AppConfig is the process configuration, parsed from the environment with
// caarlos0/env. Each group lives in its own file next to its Sanitize.
type AppConfig struct {
	// IsDev is also set by NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of service modes to run.
	Services string `env:"SERVICES" envDefault:"http,scheduler"`

	APIKeys   APIKeyConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig

	Jobs       JobsConfig       `envPrefix:"JOBS_"`
	MarketData MarketDataConfig `envPrefix:"MARKET_DATA_"`
	Predictor  PredictorConfig  `envPrefix:"PREDICTOR_"`
	Models     ModelsConfig

	HealthWatch HealthWatchConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to every group. Call it after parsing.
func (c *AppConfig) Sanitize() {
	for _, g := range []interface{ Sanitize() }{
		&c.HTTP, &c.Redis, &c.APIKeys, &c.RateLimit, &c.Security,
		&c.Jobs, &c.MarketData, &c.Predictor, &c.HealthWatch, &c.Observability,
	} {
		g.Sanitize()
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !c.IsDev {
		switch strings.ToLower(os.Getenv("NODE_ENV")) {
		case "development", "dev":
			c.IsDev = true
		}
	}
}

// GetEnabledServices parses Services.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled reports whether this process serves HTTP.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.isEnabled(ServiceModeHTTP) }

// IsSchedulerEnabled reports whether this process runs the job scheduler.
func (c *AppConfig) IsSchedulerEnabled() bool { return c.isEnabled(ServiceModeScheduler) }

// IsHealthWatchEnabled reports whether this process runs the health watcher.
func (c *AppConfig) IsHealthWatchEnabled() bool { return c.isEnabled(ServiceModeHealthWatch) }

// isEnabled treats an unparsable Services value as nothing enabled.
func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
