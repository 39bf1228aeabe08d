package config

import (
	"strings"
	"time"
)

const (
	defaultObservabilityName = "forecast"
	defaultPagerDutyEndpoint = "https://events.pagerduty.com/v2/enqueue"
)

// ObservabilityConfig groups metrics and failure notification settings.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls emission to StatsD and the /metrics endpoint.
type ObservabilityMetricsConfig struct {
	Enabled           bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress     string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	PrometheusEnabled bool   `env:"OBSERVABILITY_PROMETHEUS_ENABLED"     envDefault:"true"`
}

// Sanitize disables statsd when no address is left after trimming.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Enabled = c.Enabled && c.StatsdAddress != ""
}

// IsEnabled reports whether statsd emission is active.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// ObservabilityNotificationsConfig controls job failure and health alerts.
// A sink is only live when the top-level switch, its own switch and its
// credential are all set.
type ObservabilityNotificationsConfig struct {
	Enabled    bool                        `env:"OBSERVABILITY_NOTIFICATIONS_ENABLED"     envDefault:"false"`
	Timeout    time.Duration               `env:"OBSERVABILITY_NOTIFICATIONS_TIMEOUT"     envDefault:"5s"`
	RetryLimit int                         `env:"OBSERVABILITY_NOTIFICATIONS_RETRY_LIMIT" envDefault:"3"`
	Slack      SlackNotificationConfig     `envPrefix:"OBSERVABILITY_NOTIFICATIONS_SLACK_"`
	PagerDuty  PagerDutyNotificationConfig `envPrefix:"OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_"`
}

// Sanitize normalises notification configuration values.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	s := &c.Slack
	s.WebhookURL = strings.TrimSpace(s.WebhookURL)
	s.Channel = strings.TrimSpace(s.Channel)
	s.HealthURL = strings.TrimSpace(s.HealthURL)
	s.Username = trimOr(s.Username, defaultObservabilityName)
	s.Enabled = c.Enabled && s.Enabled && s.WebhookURL != ""

	p := &c.PagerDuty
	p.RoutingKey = strings.TrimSpace(p.RoutingKey)
	p.Source = trimOr(p.Source, defaultObservabilityName)
	p.Component = trimOr(p.Component, defaultObservabilityName)
	p.Endpoint = trimOr(p.Endpoint, defaultPagerDutyEndpoint)
	p.Enabled = c.Enabled && p.Enabled && p.RoutingKey != ""
}

// SlackNotificationConfig controls Slack webhook fan-out.
type SlackNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"forecast"`
	// HealthURL is linked from health alerts, e.g. https://api.example.com/health.
	HealthURL string `env:"HEALTH_URL"`
}

// PagerDutyNotificationConfig controls PagerDuty Events API v2 fan-out.
type PagerDutyNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"forecast"`
	Component  string `env:"COMPONENT"   envDefault:"forecast-api"`
	Endpoint   string `env:"ENDPOINT"    envDefault:"https://events.pagerduty.com/v2/enqueue"`
}

func trimOr(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
