package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

const modelVersionColumns = `id, version, ticker, created_at, parameters, metrics, artifact_path`

// ModelVersionRepo stores model version metadata.
type ModelVersionRepo struct {
	DB *sql.DB
}

var _ core.ModelVersionRepository = (*ModelVersionRepo)(nil)

// NewModelVersionRepo creates a ModelVersionRepo.
func NewModelVersionRepo(db *sql.DB) *ModelVersionRepo {
	return &ModelVersionRepo{DB: db}
}

func jsonOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

func scanModelVersion(row rowScanner) (*model.ModelVersion, error) {
	var (
		v                   model.ModelVersion
		parameters, metrics []byte
	)
	if err := row.Scan(&v.ID, &v.Version, &v.Ticker, &v.CreatedAt, &parameters, &metrics, &v.ArtifactPath); err != nil {
		return nil, err
	}
	v.Parameters = parameters
	v.Metrics = metrics
	return &v, nil
}

// Create inserts a model version row.
func (r *ModelVersionRepo) Create(ctx context.Context, v model.ModelVersion) (*model.ModelVersion, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO model_versions (version, ticker, created_at, parameters, metrics, artifact_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+modelVersionColumns,
		v.Version, v.Ticker, v.CreatedAt.UTC(), jsonOrEmpty(v.Parameters), jsonOrEmpty(v.Metrics), v.ArtifactPath,
	)
	out, err := scanModelVersion(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// List returns the newest versions first.
func (r *ModelVersionRepo) List(ctx context.Context, limit int) ([]*model.ModelVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+modelVersionColumns+` FROM model_versions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var out []*model.ModelVersion
	for rows.Next() {
		v, err := scanModelVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Latest returns the newest version for ticker.
func (r *ModelVersionRepo) Latest(ctx context.Context, ticker string) (*model.ModelVersion, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+modelVersionColumns+` FROM model_versions WHERE ticker = $1 ORDER BY created_at DESC LIMIT 1`, ticker)
	v, err := scanModelVersion(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return v, nil
}
