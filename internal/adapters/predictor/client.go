// Package predictor talks to the model-serving process that trains and
// evaluates forecasting models.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/domain/model"
)

var _ core.Predictor = (*Client)(nil)

// Client is an HTTP core.Predictor.
type Client struct {
	http *resty.Client
}

// New builds a Client. httpClient may be nil.
func New(cfg config.PredictorConfig, httpClient *http.Client) (*Client, error) {
	cfg.Sanitize()
	if cfg.BaseURL == "" {
		return nil, errors.New("predictor base url is required")
	}
	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: rc}, nil
}

type trainBody struct {
	Ticker string `json:"ticker"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

type predictBody struct {
	Ticker      string `json:"ticker"`
	HorizonDays int    `json:"horizon_days"`
	Artifact    []byte `json:"artifact"`
}

type predictResult struct {
	Value *float64 `json:"value"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Train asks the predictor to fit a model on the ticker's history.
func (c *Client) Train(ctx context.Context, req core.TrainRequest) (*model.TrainingResult, error) {
	var out model.TrainingResult
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(trainBody{
			Ticker: req.Ticker,
			Start:  req.Start.UTC().Format(time.DateOnly),
			End:    req.End.UTC().Format(time.DateOnly),
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/train")
	if err := check(resp, err, &apiErr); err != nil {
		return nil, fmt.Errorf("train %s: %w", req.Ticker, err)
	}
	if len(out.Artifact) == 0 {
		return nil, fmt.Errorf("train %s: predictor returned no artifact", req.Ticker)
	}
	return &out, nil
}

// Predict evaluates a trained artifact for the given horizon.
func (c *Client) Predict(ctx context.Context, req core.PredictRequest) (float64, error) {
	var out predictResult
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(predictBody(req)).
		SetResult(&out).
		SetError(&apiErr).
		Post("/predict")
	if err := check(resp, err, &apiErr); err != nil {
		return 0, fmt.Errorf("predict %s: %w", req.Ticker, err)
	}
	if out.Value == nil {
		return 0, fmt.Errorf("predict %s: response has no value", req.Ticker)
	}
	return *out.Value, nil
}

func check(resp *resty.Response, err error, apiErr *errorBody) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	return fmt.Errorf("predictor %s: %s", resp.Status(), msg)
}
