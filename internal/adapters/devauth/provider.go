// Package devauth provides a config-driven AuthProvider for local development.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/quantsignal/forecast-api/internal/data"
	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/ports"
)

const defaultSessionDuration = 8 * time.Hour

// Config controls the dev auth provider. Groups may be empty.
type Config struct {
	Subject         string
	Email           string
	Groups          []string
	SessionDuration time.Duration // default 8h when zero
	Clock           data.TimeProvider
}

// Provider implements ports.AuthProvider without an IdP. Begin redirects
// straight to our own callback; Exchange ignores the code and returns the
// configured identity with a fresh expiry.
type Provider struct {
	subject  string
	email    string
	groups   []string
	duration time.Duration
	clock    data.TimeProvider
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur <= 0 {
		dur = defaultSessionDuration
	}
	clock := cfg.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &Provider{
		subject:  cfg.Subject,
		email:    cfg.Email,
		groups:   append([]string(nil), cfg.Groups...),
		duration: dur,
		clock:    clock,
	}, nil
}

// Begin returns a local callback URL and random state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return "/auth/callback?code=dev&state=" + state, state, nonce, nil
}

// Exchange returns the dev identity. State and nonce are checked by the handler.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
	return domainauth.Identity{
		Subject:   p.subject,
		Email:     p.email,
		Groups:    append([]string(nil), p.groups...),
		ExpiresAt: p.clock.Now().Add(p.duration),
	}, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
