package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data/pgxutil"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

const apiKeyColumns = `k.id, k.user_id, k.key_hash, k.key_suffix, k.name, k.created_at, k.expires_at, k.last_used, k.is_active`

// APIKeyRepo provides Postgres operations for API keys.
type APIKeyRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.APIKeyRepository = (*APIKeyRepo)(nil)

// NewAPIKeyRepo creates an APIKeyRepo on the system clock.
func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo {
	return &APIKeyRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAPIKeyRepoWithTimeProvider creates an APIKeyRepo with a custom clock.
func NewAPIKeyRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *APIKeyRepo {
	return &APIKeyRepo{DB: db, timeProvider: tp}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner, extra ...any) (*model.APIKey, error) {
	var (
		k        model.APIKey
		lastUsed sql.NullTime
	)
	dest := []any{&k.ID, &k.OwnerID, &k.KeyHash, &k.KeySuffix, &k.Name, &k.CreatedAt, &k.ExpiresAt, &lastUsed, &k.IsActive}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	return &k, nil
}

// CreateWithinLimit locks the owner row, counts their live keys and inserts
// the new key in one transaction, so concurrent creates cannot pass the cap.
func (r *APIKeyRepo) CreateWithinLimit(
	ctx context.Context,
	req model.CreateAPIKeyRequest,
	limit int,
) (*model.APIKey, error) {
	var out *model.APIKey
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		var ownerID string
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE id = $1 FOR UPDATE`, req.OwnerID,
		).Scan(&ownerID); err != nil {
			return fmt.Errorf("lock owner: %w", apperrors.MapDBError(err))
		}

		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND is_active AND expires_at > $2`,
			req.OwnerID, r.timeProvider.Now().UTC(),
		).Scan(&active); err != nil {
			return fmt.Errorf("count keys: %w", apperrors.MapDBError(err))
		}
		if active >= limit {
			return core.ErrKeyLimitReached
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO api_keys AS k (user_id, key_hash, key_suffix, name, created_at, expires_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING `+apiKeyColumns,
			req.OwnerID, req.KeyHash, req.KeySuffix, req.Name, req.CreatedAt.UTC(), req.ExpiresAt.UTC(),
		)
		k, err := scanAPIKey(row)
		if err != nil {
			return fmt.Errorf("insert key: %w", apperrors.MapDBError(err))
		}
		out = k
		return nil
	}})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByHash returns the key and its owner's state in one query.
func (r *APIKeyRepo) FindByHash(ctx context.Context, keyHash string) (*model.KeyRecord, error) {
	var rec model.KeyRecord
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+apiKeyColumns+`, u.is_active, u.email
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE k.key_hash = $1`, keyHash)

	k, err := scanAPIKey(row, &rec.OwnerActive, &rec.OwnerEmail)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	rec.Key = *k
	return &rec, nil
}

// TouchLastUsed records a successful authentication.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE api_keys SET last_used = $2 WHERE id = $1`, keyID, at.UTC(),
	); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Revoke deactivates the key matching both hash and owner.
func (r *APIKeyRepo) Revoke(ctx context.Context, keyHash, ownerID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE key_hash = $1 AND user_id = $2`, keyHash, ownerID,
	)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByOwner returns the owner's keys, newest first.
func (r *APIKeyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys k
		WHERE k.user_id = $1
		ORDER BY k.created_at DESC`, ownerID)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var out []*model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DeactivateExpired flips is_active off for every key past its expiry.
func (r *APIKeyRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE is_active AND expires_at <= $1`, now.UTC(),
	)
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return res.RowsAffected()
}
