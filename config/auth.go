package config

import (
	"fmt"
	"strings"
)

// AuthMode selects how key owners sign in.
type AuthMode string

const (
	// AuthModeOAuth signs owners in against an OIDC provider.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeDev signs every login in as DEV_AUTH_SUBJECT. Development only.
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText accepts "oauth" and "dev". "mock" is kept as an alias of dev.
func (a *AuthMode) UnmarshalText(text []byte) error {
	switch v := AuthMode(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case AuthModeOAuth, AuthModeDev:
		*a = v
	case "mock":
		*a = AuthModeDev
	default:
		return fmt.Errorf("invalid AUTH_MODE %q (valid: oauth, dev)", text)
	}
	return nil
}

// OAuthConfig holds the OIDC client registration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"forecast"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig is the identity every login resolves to when AUTH_MODE=dev.
type DevAuthConfig struct {
	Subject string   `env:"SUBJECT" envDefault:"dev-user"`
	Email   string   `env:"EMAIL"   envDefault:"dev@example.com"`
	Groups  []string `env:"GROUPS"  envDefault:"forecast-admins" envSeparator:";"`
}

// AuthConfig groups owner authentication configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Group membership decides the session role: admins read task metrics,
	// users manage their own keys. Everyone else is a guest.
	AdminGroup string `env:"ADMIN_GROUP" envDefault:"forecast-admins"`
	UserGroup  string `env:"USER_GROUP"  envDefault:"forecast-users"`
}
