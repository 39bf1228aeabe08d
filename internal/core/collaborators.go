package core

import (
	"context"
	"time"

	"github.com/quantsignal/forecast-api/internal/domain/model"
)

// TrainRequest selects the ticker and date range to train on.
type TrainRequest struct {
	Ticker string
	Start  time.Time
	End    time.Time
}

// PredictRequest asks for a forecast from a trained model.
type PredictRequest struct {
	Ticker      string
	HorizonDays int
	Artifact    []byte
}

// Predictor is the opaque model collaborator.
type Predictor interface {
	Train(ctx context.Context, req TrainRequest) (*model.TrainingResult, error)
	Predict(ctx context.Context, req PredictRequest) (float64, error)
}

// ModelArtifactStore persists trained model artifacts.
type ModelArtifactStore interface {
	// Save stores the artifact and returns its location.
	Save(ctx context.Context, version string, artifact []byte) (string, error)
	// Load returns the artifact for version. An empty version loads the newest.
	Load(ctx context.Context, version string) ([]byte, error)
	// List returns the discoverable versions, newest first.
	List(ctx context.Context) ([]string, error)
	// Delete removes the artifact for version. A missing artifact is not an error.
	Delete(ctx context.Context, version string) error
}

// MarketDataSource fetches bars from an upstream provider.
type MarketDataSource interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]model.Bar, error)
}
