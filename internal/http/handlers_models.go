package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/service"
)

const (
	defaultModelLimit = 50
	maxModelLimit     = 100
)

// Forecaster serves model listing and forecasts. *service.ForecastService satisfies it.
type Forecaster interface {
	ListModels(ctx context.Context, limit int) ([]*model.ModelVersion, error)
	Predict(ctx context.Context, req service.PredictRequest) (*model.Prediction, error)
}

// ModelHandlers serves the rate-limited model endpoints.
type ModelHandlers struct {
	Svc    Forecaster
	Logger *slog.Logger
}

// List returns persisted model versions, newest first.
// GET /api/v1/models?limit=<n>.
func (h *ModelHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r.URL.Query(), defaultModelLimit, maxModelLimit)
	versions, err := h.Svc.ListModels(r.Context(), limit)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "list models failed", "error", err)
		writeServiceError(w, err, "list_failed")
		return
	}
	if versions == nil {
		versions = []*model.ModelVersion{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// Predict runs a forecast and persists it.
// POST /api/v1/predict {ticker, horizon_days, model_version?}.
func (h *ModelHandlers) Predict(w http.ResponseWriter, r *http.Request) {
	var req service.PredictRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	p, err := h.Svc.Predict(r.Context(), req)
	if err != nil {
		h.logger().WarnContext(r.Context(), "prediction failed", "ticker", req.Ticker, "error", err)
		writeServiceError(w, err, "prediction_failed")
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (h *ModelHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// queryLimit reads ?limit, falling back to def when absent or malformed and
// clamping into [1, maxLimit].
func queryLimit(q url.Values, def, maxLimit int) int {
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = def
	}
	return max(1, min(limit, max(1, maxLimit)))
}
