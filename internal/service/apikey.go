package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/data/cryptoutil"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

var (
	// ErrKeyLimitReached is returned by Create when the owner holds the maximum number of keys.
	ErrKeyLimitReached = core.ErrKeyLimitReached
	// ErrKeyNotFound covers both unknown keys and keys owned by someone else.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrInvalidKeyFormat is returned for secrets that fail the length or charset check.
	ErrInvalidKeyFormat = errors.New("invalid api key format")
)

// KeyRejection names why a presented secret did not authenticate.
type KeyRejection string

const (
	KeyAccepted  KeyRejection = ""
	KeyMissing   KeyRejection = "missing_api_key"
	KeyBadFormat KeyRejection = "invalid_api_key_format"
	KeyInvalid   KeyRejection = "invalid_api_key"
	KeyInactive  KeyRejection = "inactive_api_key"
	KeyExpired   KeyRejection = "expired_api_key"
)

// Message is the caller-facing text for a rejection.
func (r KeyRejection) Message() string {
	switch r {
	case KeyMissing:
		return "No API key provided"
	case KeyBadFormat:
		return "Invalid API key format"
	case KeyInvalid:
		return "Invalid API key"
	case KeyInactive:
		return "Inactive API key or user account"
	case KeyExpired:
		return "Expired API key"
	default:
		return ""
	}
}

// KeyValidation is the typed result of Validate.
type KeyValidation struct {
	Key       *model.AuthenticatedKey
	Rejection KeyRejection
}

// OK reports whether the secret authenticated.
func (v KeyValidation) OK() bool { return v.Rejection == KeyAccepted && v.Key != nil }

// APIKeyServiceOptions groups dependencies for APIKeyService.
type APIKeyServiceOptions struct {
	Repo      core.APIKeyRepository  // Required
	Hasher    cryptoutil.KeyHasher   // Optional: plain SHA-256 when nil
	Config    config.APIKeyConfig    // Required
	RateLimit config.RateLimitConfig // Reported to callers on creation
	Clock     data.TimeProvider      // Optional: system clock
	Logger    *slog.Logger
}

// APIKeyService issues, validates and revokes API keys.
type APIKeyService struct {
	repo      core.APIKeyRepository
	hasher    cryptoutil.KeyHasher
	cfg       config.APIKeyConfig
	rateLimit config.RateLimitConfig
	clock     data.TimeProvider
	logger    *slog.Logger
}

// NewAPIKeyService constructs an APIKeyService.
func NewAPIKeyService(opts APIKeyServiceOptions) (*APIKeyService, error) {
	if opts.Repo == nil {
		return nil, errors.New("APIKeyRepository is required")
	}
	opts.Config.Sanitize()
	opts.RateLimit.Sanitize()

	hasher := opts.Hasher
	if hasher == nil {
		hasher = cryptoutil.NewSHA256Hasher(opts.Config.Pepper)
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &APIKeyService{
		repo:      opts.Repo,
		hasher:    hasher,
		cfg:       opts.Config,
		rateLimit: opts.RateLimit,
		clock:     clock,
		logger:    logger.With("component", "api_key_service"),
	}, nil
}

// Generate returns a new random secret of at least the minimum length.
func (s *APIKeyService) Generate() (string, error) {
	return cryptoutil.RandomHex((s.cfg.MinLength + 1) / 2)
}

// ValidFormat reports whether secret passes the length and charset check.
func (s *APIKeyService) ValidFormat(secret string) bool {
	return len(secret) >= s.cfg.MinLength && cryptoutil.IsHex(secret)
}

// Create issues a new key for ownerID. The secret is returned once and never stored.
func (s *APIKeyService) Create(ctx context.Context, ownerID, name string) (*model.IssuedAPIKey, error) {
	name = strings.TrimSpace(name)
	if len(name) > 100 {
		return nil, apperrors.ValidationField("name", "name must be at most 100 characters")
	}

	secret, err := s.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	created := s.clock.Now().UTC()
	key, err := s.repo.CreateWithinLimit(ctx, model.CreateAPIKeyRequest{
		OwnerID:   ownerID,
		KeyHash:   s.hasher.Hash(secret),
		KeySuffix: suffix(secret, s.cfg.DisplaySuffix),
		Name:      name,
		CreatedAt: created,
		ExpiresAt: created.Add(s.cfg.Expiry()),
	}, s.cfg.MaxPerOwner)
	if err != nil {
		if errors.Is(err, core.ErrKeyLimitReached) {
			return nil, fmt.Errorf("owner %s holds %d keys: %w", ownerID, s.cfg.MaxPerOwner, ErrKeyLimitReached)
		}
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.logger.InfoContext(ctx, "api key created", "owner_id", ownerID, "key_id", key.ID)
	return &model.IssuedAPIKey{
		Secret: secret,
		Key:    *key,
		RateLimit: model.RateLimitInfo{
			MaxRequests:   s.rateLimit.Requests,
			WindowSeconds: int(s.rateLimit.Window / time.Second),
		},
	}, nil
}

// Validate checks the secret's format, looks up the key with its owner and,
// on success, records last_used. A non-nil error means the lookup itself failed.
func (s *APIKeyService) Validate(ctx context.Context, secret string) (KeyValidation, error) {
	if secret == "" {
		return KeyValidation{Rejection: KeyMissing}, nil
	}
	if !s.ValidFormat(secret) {
		return KeyValidation{Rejection: KeyBadFormat}, nil
	}

	rec, err := s.repo.FindByHash(ctx, s.hasher.Hash(secret))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return KeyValidation{Rejection: KeyInvalid}, nil
		}
		return KeyValidation{}, fmt.Errorf("lookup api key: %w", err)
	}

	now := s.clock.Now()
	switch {
	case !rec.Key.IsActive || !rec.OwnerActive:
		return KeyValidation{Rejection: KeyInactive}, nil
	case rec.Key.IsExpired(now):
		return KeyValidation{Rejection: KeyExpired}, nil
	}

	if err := s.repo.TouchLastUsed(ctx, rec.Key.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record api key use", "key_id", rec.Key.ID, "error", err)
	}

	return KeyValidation{Key: &model.AuthenticatedKey{
		KeyID:     rec.Key.ID,
		OwnerID:   rec.Key.OwnerID,
		ExpiresAt: rec.Key.ExpiresAt,
	}}, nil
}

// Revoke deactivates the caller's own key. Keys that do not exist and keys
// owned by someone else both yield ErrKeyNotFound.
func (s *APIKeyService) Revoke(ctx context.Context, secret, ownerID string) error {
	if !s.ValidFormat(secret) {
		return ErrKeyNotFound
	}
	ok, err := s.repo.Revoke(ctx, s.hasher.Hash(secret), ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if !ok {
		return ErrKeyNotFound
	}
	s.logger.InfoContext(ctx, "api key revoked", "owner_id", ownerID)
	return nil
}

// List returns the owner's keys, newest first. Only the stored suffix is exposed.
func (s *APIKeyService) List(ctx context.Context, ownerID string) ([]*model.APIKey, error) {
	keys, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// SweepExpired deactivates every key past its expiry.
func (s *APIKeyService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired keys: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired api keys deactivated", "count", n)
	}
	return n, nil
}

// Status reports the calling key's state and quota.
func (s *APIKeyService) Status(ctx context.Context, key model.AuthenticatedKey, limiter *RateLimiter) model.KeyStatus {
	left, resetIn, _ := limiter.Peek(ctx, key.RateLimitPrincipal())
	return model.KeyStatus{
		Active:            s.clock.Now().Before(key.ExpiresAt),
		ExpiresAt:         key.ExpiresAt,
		RemainingRequests: left,
		MaxRequests:       limiter.Limit(),
		ResetIn:           int((resetIn + time.Second - 1) / time.Second),
	}
}

func suffix(secret string, n int) string {
	if n >= len(secret) {
		return secret
	}
	return secret[len(secret)-n:]
}
