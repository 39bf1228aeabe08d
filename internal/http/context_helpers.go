package httpx

import (
	"context"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/domain/model"
)

// Unexported key types avoid collisions across packages.
type (
	sessionKey struct{}
	apiKeyKey  struct{}
)

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the owner session set by RequireAuth.
func GetSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*domainauth.Session)
	return s, ok && s != nil
}

// SetAPIKeyInContext stores the key that authenticated the request.
func SetAPIKeyInContext(ctx context.Context, key *model.AuthenticatedKey) context.Context {
	if key == nil {
		return ctx
	}
	return context.WithValue(ctx, apiKeyKey{}, key)
}

// GetAPIKeyFromContext returns the key set by APIKeyAuth.
func GetAPIKeyFromContext(ctx context.Context) (*model.AuthenticatedKey, bool) {
	k, ok := ctx.Value(apiKeyKey{}).(*model.AuthenticatedKey)
	return k, ok && k != nil
}
