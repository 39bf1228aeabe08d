package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data/pgxutil"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

const upsertBarSQL = `
	INSERT INTO historical_data (ticker, date, open, high, low, close, volume, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (ticker, date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		updated_at = now()`

// MarketDataRepo stores daily bars in historical_data.
type MarketDataRepo struct {
	DB *sql.DB
}

var _ core.MarketDataRepository = (*MarketDataRepo)(nil)

// NewMarketDataRepo creates a MarketDataRepo.
func NewMarketDataRepo(db *sql.DB) *MarketDataRepo {
	return &MarketDataRepo{DB: db}
}

// UpsertBars sends all bars for one ticker as a single pgx batch inside one
// transaction. Any failing row rolls back the ticker's whole batch.
func (r *MarketDataRepo) UpsertBars(ctx context.Context, ticker string, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			day := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, time.UTC)
			batch.Queue(upsertBarSQL, ticker, day, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		results := tx.SendBatch(ctx, batch)
		for i := range bars {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("upsert bar %d for %s: %w", i, ticker, apperrors.MapDBError(err))
			}
		}
		return results.Close()
	}})
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

// LatestDate returns the most recent stored bar date, or nil when none exist.
func (r *MarketDataRepo) LatestDate(ctx context.Context, ticker string) (*time.Time, error) {
	var latest sql.NullTime
	if err := r.DB.QueryRowContext(ctx,
		`SELECT MAX(date) FROM historical_data WHERE ticker = $1`, ticker,
	).Scan(&latest); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}
