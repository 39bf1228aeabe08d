package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quantsignal/forecast-api/internal/core"
)

// DBProbe checks the relational store with a trivial query.
type DBProbe struct {
	DB *sql.DB
}

var _ core.DatabaseProbe = DBProbe{}

// Probe runs SELECT 1.
func (p DBProbe) Probe(ctx context.Context) error {
	var one int
	if err := p.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("database round trip: %w", err)
	}
	return nil
}
