package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/ports"
)

var (
	// ErrSessionExpired is returned for a stored session past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrPrincipalInactive is returned when a login maps to a deactivated owner.
	ErrPrincipalInactive = errors.New("principal is inactive")
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider   ports.AuthProvider       // Required
	Sessions   ports.SessionStore       // Required
	Roles      ports.RoleMapper         // Required
	Principals core.PrincipalRepository // Required
	Clock      data.TimeProvider        // Optional: system clock
	Logger     *slog.Logger
}

// AuthService runs the login flow for key owners. A completed login
// provisions the principal that API keys are issued to.
type AuthService struct {
	provider   ports.AuthProvider
	sessions   ports.SessionStore
	roles      ports.RoleMapper
	principals core.PrincipalRepository
	clock      data.TimeProvider
	logger     *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	switch {
	case opts.Provider == nil:
		return nil, errors.New("AuthProvider is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionStore is required")
	case opts.Roles == nil:
		return nil, errors.New("RoleMapper is required")
	case opts.Principals == nil:
		return nil, errors.New("PrincipalRepository is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider:   opts.Provider,
		sessions:   opts.Sessions,
		roles:      opts.Roles,
		principals: opts.Principals,
		clock:      clock,
		logger:     logger.With("component", "auth"),
	}, nil
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLogin exchanges the code for an identity, provisions the owning
// principal, and persists a session bound to it.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*domainauth.Session, error) {
	switch {
	case input.Code == "":
		return nil, errors.New("authorization code is required")
	case input.State == "":
		return nil, errors.New("state parameter is required")
	case input.Nonce == "":
		return nil, errors.New("nonce parameter is required")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput(input))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if identity.Subject == "" {
		return nil, errors.New("identity has no subject")
	}

	principal, err := s.principals.GetOrCreateBySubject(ctx, identity.Subject, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("provision principal: %w", err)
	}
	if !principal.IsActive {
		s.logger.WarnContext(ctx, "login rejected for inactive principal", "principal_id", principal.ID)
		return nil, ErrPrincipalInactive
	}

	session := domainauth.Session{
		ID:        uuid.NewString(),
		Subject:   identity.Subject,
		OwnerID:   principal.ID,
		Email:     identity.Email,
		Name:      displayName(identity),
		Role:      s.roles.Map(identity.Groups),
		ExpiresAt: identity.ExpiresAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "login completed",
		"principal_id", principal.ID,
		"role", string(session.Role),
	)
	return &session, nil
}

// GetSession retrieves a live session by ID. Expired sessions are removed.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(s.clock.Now()) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Logout removes a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func displayName(id domainauth.Identity) string {
	switch {
	case id.FirstName != "" && id.LastName != "":
		return id.FirstName + " " + id.LastName
	case id.FirstName != "":
		return id.FirstName
	default:
		return id.LastName
	}
}
