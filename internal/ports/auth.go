// Package ports defines the login-flow interfaces implemented under internal/adapters.
package ports

import (
	"context"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
)

// BeginInput carries inputs for initiating a login.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider starts and completes a login against an IdP.
type AuthProvider interface {
	// Begin returns the IdP URL to redirect to plus an opaque state and nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)
	// Exchange verifies state and nonce and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// SessionStore persists owner sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// RoleMapper maps IdP groups to an application role.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}
