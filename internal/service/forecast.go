package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

const (
	defaultModelListLimit = 100
	maxHorizonDays        = 365
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// ForecastServiceOptions groups dependencies for ForecastService.
type ForecastServiceOptions struct {
	Predictions   core.PredictionRepository   // Required
	ModelVersions core.ModelVersionRepository // Required
	Artifacts     core.ModelArtifactStore     // Required
	Predictor     core.Predictor              // Required
	// Store receives a cache entry per forecast for cache_cleanup to age out.
	Store  core.CounterStore // Optional
	Clock  data.TimeProvider // Optional: system clock
	Logger *slog.Logger
}

// ForecastService serves the rate-limited model endpoints.
type ForecastService struct {
	predictions   core.PredictionRepository
	modelVersions core.ModelVersionRepository
	artifacts     core.ModelArtifactStore
	predictor     core.Predictor
	store         core.CounterStore
	clock         data.TimeProvider
	logger        *slog.Logger
}

// NewForecastService constructs a ForecastService.
func NewForecastService(opts ForecastServiceOptions) (*ForecastService, error) {
	switch {
	case opts.Predictions == nil:
		return nil, errors.New("PredictionRepository is required")
	case opts.ModelVersions == nil:
		return nil, errors.New("ModelVersionRepository is required")
	case opts.Artifacts == nil:
		return nil, errors.New("ModelArtifactStore is required")
	case opts.Predictor == nil:
		return nil, errors.New("Predictor is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastService{
		predictions:   opts.Predictions,
		modelVersions: opts.ModelVersions,
		artifacts:     opts.Artifacts,
		predictor:     opts.Predictor,
		store:         opts.Store,
		clock:         clock,
		logger:        logger.With("component", "forecast"),
	}, nil
}

// PredictRequest is the body of a forecast call.
type PredictRequest struct {
	Ticker       string `json:"ticker"`
	HorizonDays  int    `json:"horizon_days"`
	ModelVersion string `json:"model_version,omitempty"`
}

// ListModels returns persisted model versions, newest first.
func (s *ForecastService) ListModels(ctx context.Context, limit int) ([]*model.ModelVersion, error) {
	if limit <= 0 || limit > defaultModelListLimit {
		limit = defaultModelListLimit
	}
	versions, err := s.modelVersions.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	return versions, nil
}

// Predict loads the requested (or newest) model for the ticker, asks the
// predictor for a forecast and persists it.
func (s *ForecastService) Predict(ctx context.Context, req PredictRequest) (*model.Prediction, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	switch {
	case ticker == "":
		return nil, apperrors.ValidationField("ticker", "ticker symbol is required")
	case !tickerPattern.MatchString(ticker):
		return nil, apperrors.ValidationField("ticker", "invalid ticker symbol: "+req.Ticker)
	case req.HorizonDays < 1 || req.HorizonDays > maxHorizonDays:
		return nil, apperrors.ValidationField("horizon_days",
			fmt.Sprintf("horizon_days must be between 1 and %d", maxHorizonDays))
	}

	version := strings.TrimSpace(req.ModelVersion)
	if version == "" {
		latest, err := s.modelVersions.Latest(ctx, ticker)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NotFound("no trained model for " + ticker)
			}
			return nil, fmt.Errorf("find model for %s: %w", ticker, err)
		}
		version = latest.Version
	}

	artifact, err := s.artifacts.Load(ctx, version)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "model version %s not available", version)
	}

	value, err := s.predictor.Predict(ctx, core.PredictRequest{
		Ticker:      ticker,
		HorizonDays: req.HorizonDays,
		Artifact:    artifact,
	})
	if err != nil {
		return nil, apperrors.Unavailable(err, "prediction failed")
	}

	now := s.clock.Now().UTC()
	saved, err := s.predictions.Create(ctx, model.Prediction{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		HorizonDays: req.HorizonDays,
		Value:       value,
		ModelID:     version,
		PredictedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("save prediction: %w", err)
	}

	s.cache(ctx, saved, now)
	s.logger.InfoContext(ctx, "prediction served",
		"ticker", ticker,
		"horizon_days", req.HorizonDays,
		"model_version", version,
	)
	return saved, nil
}

// cache records the latest forecast and its timestamp sibling. Failures are
// logged only; the prediction is already persisted.
func (s *ForecastService) cache(ctx context.Context, p *model.Prediction, now time.Time) {
	if s.store == nil {
		return
	}
	key := fmt.Sprintf("%sprediction:%s:%d", cacheKeyPrefix, p.Ticker, p.HorizonDays)
	value := strconv.FormatFloat(p.Value, 'f', -1, 64)
	if err := s.store.Set(ctx, key, value, 0); err != nil {
		s.logger.WarnContext(ctx, "failed to cache prediction", "key", key, "error", err)
		return
	}
	if err := s.store.Set(ctx, key+cacheStampSuffix, strconv.FormatInt(now.Unix(), 10), 0); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp cached prediction", "key", key, "error", err)
	}
}
