package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

// PredictionRepo stores forecasts.
type PredictionRepo struct {
	DB *sql.DB
}

var _ core.PredictionRepository = (*PredictionRepo)(nil)

// NewPredictionRepo creates a PredictionRepo.
func NewPredictionRepo(db *sql.DB) *PredictionRepo {
	return &PredictionRepo{DB: db}
}

// Create inserts a prediction and returns it with its generated id.
func (r *PredictionRepo) Create(ctx context.Context, p model.Prediction) (*model.Prediction, error) {
	out := p
	out.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO predictions (ticker, horizon_days, value, model_id, predicted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		out.Ticker, out.HorizonDays, out.Value, out.ModelID, out.PredictedAt.UTC(),
	).Scan(&out.ID)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// PopularTickers ranks tickers by prediction count since the given time.
func (r *PredictionRepo) PopularTickers(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.tickers(ctx, `
		SELECT ticker FROM predictions
		WHERE predicted_at >= $1
		GROUP BY ticker
		ORDER BY COUNT(*) DESC, ticker
		LIMIT $2`, since.UTC(), limit)
}

// RecentTickers returns every distinct ticker predicted since the given time.
func (r *PredictionRepo) RecentTickers(ctx context.Context, since time.Time) ([]string, error) {
	return r.tickers(ctx, `
		SELECT DISTINCT ticker FROM predictions
		WHERE predicted_at >= $1
		ORDER BY ticker`, since.UTC())
}

func (r *PredictionRepo) tickers(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes predictions made before cutoff.
func (r *PredictionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM predictions WHERE predicted_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return res.RowsAffected()
}
