package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler runs the background job scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeHealthWatch runs the periodic health watcher.
	ServiceModeHealthWatch ServiceMode = "health-watch"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeHealthWatch,
	}
}

// ParseServices parses a comma-delimited list of service modes. Blank
// entries are skipped. Unknown names and an empty result are errors.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	valid := ValidServiceModes()
	services := make(map[ServiceMode]bool, len(valid))

	for part := range strings.SplitSeq(servicesStr, ",") {
		mode := ServiceMode(strings.TrimSpace(part))
		if mode == "" {
			continue
		}
		if !slices.Contains(valid, mode) {
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", mode, joinModes(valid))
		}
		services[mode] = true
	}

	if len(services) == 0 {
		return nil, errors.New("at least one service must be specified")
	}
	return services, nil
}

func joinModes(modes []ServiceMode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// HealthWatchConfig controls the periodic health watcher.
type HealthWatchConfig struct {
	// Interval between health evaluations.
	Interval time.Duration `env:"HEALTH_WATCH_INTERVAL" envDefault:"5m"`

	// NotifyOnRecovery sends a notification when status returns to healthy.
	NotifyOnRecovery bool `env:"HEALTH_WATCH_NOTIFY_RECOVERY" envDefault:"true"`

	// URL of a remote /health/check endpoint. When empty the watcher probes
	// the components of its own process.
	URL string `env:"HEALTH_WATCH_URL"`

	// Timeout bounds one remote check.
	Timeout time.Duration `env:"HEALTH_WATCH_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to health watcher configuration values.
func (h *HealthWatchConfig) Sanitize() {
	if h.Interval < 10*time.Second {
		h.Interval = 10 * time.Second
	}
	if h.Timeout <= 0 {
		h.Timeout = 10 * time.Second
	}
}
