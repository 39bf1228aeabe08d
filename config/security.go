package config

import "time"

// APIKeyConfig controls API key issuance and validation.
type APIKeyConfig struct {
	// MaxPerOwner is the number of active keys an owner may hold.
	MaxPerOwner int `env:"API_KEY_MAX_PER_OWNER" envDefault:"5"`

	// ExpiryDays is the key lifetime counted from creation.
	ExpiryDays int `env:"API_KEY_EXPIRY_DAYS" envDefault:"365"`

	// MinLength is the minimum accepted length of a hex-encoded key.
	MinLength int `env:"API_KEY_MIN_LENGTH" envDefault:"64"`

	// DisplaySuffix is how many trailing characters listings reveal.
	DisplaySuffix int `env:"API_KEY_DISPLAY_SUFFIX" envDefault:"8"`

	// Pepper is mixed into the stored key digest. Changing it invalidates every key.
	Pepper string `env:"API_KEY_PEPPER"`
}

// Sanitize applies guardrails to API key configuration values.
func (c *APIKeyConfig) Sanitize() {
	if c.MaxPerOwner < 1 {
		c.MaxPerOwner = 1
	}
	if c.ExpiryDays < 1 {
		c.ExpiryDays = 1
	}
	if c.MinLength < 64 {
		c.MinLength = 64
	}
	if c.DisplaySuffix < 4 {
		c.DisplaySuffix = 4
	}
	if c.DisplaySuffix > 16 {
		c.DisplaySuffix = 16
	}
}

// Expiry returns the key lifetime as a duration.
func (c APIKeyConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryDays) * 24 * time.Hour
}

// RateLimitConfig controls the fixed-window request limiter.
type RateLimitConfig struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW"   envDefault:"1h"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (c *RateLimitConfig) Sanitize() {
	if c.Requests < 1 {
		c.Requests = 1
	}
	if c.Window < time.Second {
		c.Window = time.Second
	}
}

// SecurityConfig controls failed-attempt tracking.
type SecurityConfig struct {
	FailedAttemptsLimit int           `env:"SECURITY_FAILED_ATTEMPTS_LIMIT" envDefault:"5"`
	Window              time.Duration `env:"SECURITY_WINDOW"                envDefault:"15m"`
}

// Sanitize applies guardrails to security configuration values.
func (c *SecurityConfig) Sanitize() {
	if c.FailedAttemptsLimit < 1 {
		c.FailedAttemptsLimit = 1
	}
	if c.Window < time.Second {
		c.Window = time.Second
	}
}
