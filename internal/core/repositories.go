package core

import (
	"context"
	"errors"
	"time"

	"github.com/quantsignal/forecast-api/internal/domain/model"
)

// ErrKeyLimitReached is returned when an owner already holds the maximum number of active keys.
var ErrKeyLimitReached = errors.New("api key limit reached")

// APIKeyRepository persists API keys. Hashes, never secrets, cross this boundary.
type APIKeyRepository interface {
	// CreateWithinLimit inserts the key unless the owner already holds limit
	// active, unexpired keys, in which case it returns ErrKeyLimitReached.
	CreateWithinLimit(ctx context.Context, req model.CreateAPIKeyRequest, limit int) (*model.APIKey, error)
	// FindByHash returns the key joined with its owner's state in one lookup.
	FindByHash(ctx context.Context, keyHash string) (*model.KeyRecord, error)
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
	// Revoke deactivates the key only when ownerID owns it. The bool is false
	// when nothing matched.
	Revoke(ctx context.Context, keyHash, ownerID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.APIKey, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// PrincipalRepository provisions key owners from login identities.
type PrincipalRepository interface {
	GetOrCreateBySubject(ctx context.Context, subject, email string) (*model.Principal, error)
	GetBySubject(ctx context.Context, subject string) (*model.Principal, error)
}

// PredictionRepository persists forecasts.
type PredictionRepository interface {
	Create(ctx context.Context, p model.Prediction) (*model.Prediction, error)
	// PopularTickers returns tickers ordered by prediction count since the given time.
	PopularTickers(ctx context.Context, since time.Time, limit int) ([]string, error)
	// RecentTickers returns every ticker predicted since the given time.
	RecentTickers(ctx context.Context, since time.Time) ([]string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MarketDataRepository persists daily bars.
type MarketDataRepository interface {
	// UpsertBars writes bars for one ticker in a single transaction.
	UpsertBars(ctx context.Context, ticker string, bars []model.Bar) (int, error)
	LatestDate(ctx context.Context, ticker string) (*time.Time, error)
}

// ModelVersionRepository persists model version metadata.
type ModelVersionRepository interface {
	Create(ctx context.Context, v model.ModelVersion) (*model.ModelVersion, error)
	List(ctx context.Context, limit int) ([]*model.ModelVersion, error)
	Latest(ctx context.Context, ticker string) (*model.ModelVersion, error)
}

// DatabaseProbe runs a trivial round trip against the relational store.
type DatabaseProbe interface {
	Probe(ctx context.Context) error
}
