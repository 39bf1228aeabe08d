// Package mocks provides mock implementations of the forecast service ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockAPIKeyRepository(ctrl)
//	repo.EXPECT().FindByHash(gomock.Any(), gomock.Any()).Return(rec, nil)
package mocks

// APIKeyRepository: CreateWithinLimit, FindByHash, TouchLastUsed, Revoke, ListByOwner, DeactivateExpired
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=apikey_repository_mock.go github.com/quantsignal/forecast-api/internal/core APIKeyRepository

// PrincipalRepository: GetOrCreateBySubject, GetBySubject
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=principal_repository_mock.go github.com/quantsignal/forecast-api/internal/core PrincipalRepository

// PredictionRepository: Create, PopularTickers, RecentTickers, DeleteOlderThan
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=prediction_repository_mock.go github.com/quantsignal/forecast-api/internal/core PredictionRepository

// MarketDataRepository: UpsertBars, LatestDate
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=market_data_repository_mock.go github.com/quantsignal/forecast-api/internal/core MarketDataRepository

// ModelVersionRepository: Create, List, Latest
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=model_version_repository_mock.go github.com/quantsignal/forecast-api/internal/core ModelVersionRepository

// DatabaseProbe: Probe
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=database_probe_mock.go github.com/quantsignal/forecast-api/internal/core DatabaseProbe

// Predictor: Train, Predict
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=predictor_mock.go github.com/quantsignal/forecast-api/internal/core Predictor

// ModelArtifactStore: Save, Load, List, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=model_artifact_store_mock.go github.com/quantsignal/forecast-api/internal/core ModelArtifactStore

// MarketDataSource: FetchBars
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=market_data_source_mock.go github.com/quantsignal/forecast-api/internal/core MarketDataSource
