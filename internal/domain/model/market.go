package model

import (
	"encoding/json"
	"time"
)

// Bar is one daily OHLCV row for a ticker.
type Bar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Prediction is a persisted forecast.
type Prediction struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	HorizonDays int       `json:"horizon_days"`
	Value       float64   `json:"value"`
	ModelID     string    `json:"model_version,omitempty"`
	PredictedAt time.Time `json:"predicted_at"`
}

// ModelVersion is the metadata row for a persisted model artifact.
type ModelVersion struct {
	ID           string          `json:"id"`
	Version      string          `json:"version"`
	Ticker       string          `json:"ticker"`
	CreatedAt    time.Time       `json:"created_at"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
	ArtifactPath string          `json:"artifact_path"`
}

// TrainingResult is what the predictor hands back from a training run.
type TrainingResult struct {
	Artifact   []byte             `json:"artifact"`
	History    map[string]float64 `json:"history"`
	Parameters json.RawMessage    `json:"parameters,omitempty"`
}
