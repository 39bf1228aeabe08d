package data

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

var apiKeyRowColumns = []string{
	"id", "user_id", "key_hash", "key_suffix", "name", "created_at", "expires_at", "last_used", "is_active",
}

func newKeyRequest(now time.Time) model.CreateAPIKeyRequest {
	return model.CreateAPIKeyRequest{
		OwnerID:   "owner-1",
		KeyHash:   "hash-1",
		KeySuffix: "deadbeef",
		Name:      "ci",
		CreatedAt: now,
		ExpiresAt: now.Add(365 * 24 * time.Hour),
	}
}

func TestAPIKeyRepo_CreateWithinLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewAPIKeyRepoWithTimeProvider(db, NewFixedTimeProvider(now))
	req := newKeyRequest(now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR UPDATE`)).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("owner-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM api_keys`).
		WithArgs("owner-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`INSERT INTO api_keys`).
		WithArgs("owner-1", "hash-1", "deadbeef", "ci", now, req.ExpiresAt).
		WillReturnRows(sqlmock.NewRows(apiKeyRowColumns).
			AddRow("key-1", "owner-1", "hash-1", "deadbeef", "ci", now, req.ExpiresAt, nil, true))
	mock.ExpectCommit()

	k, err := repo.CreateWithinLimit(context.Background(), req, 5)
	require.NoError(t, err)
	assert.Equal(t, "key-1", k.ID)
	assert.True(t, k.IsActive)
	assert.Nil(t, k.LastUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_CreateWithinLimit_AtCapacity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewAPIKeyRepoWithTimeProvider(db, NewFixedTimeProvider(now))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users`).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("owner-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM api_keys`).
		WithArgs("owner-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	_, err = repo.CreateWithinLimit(context.Background(), newKeyRequest(now), 5)
	require.ErrorIs(t, err, core.ErrKeyLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_FindByHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	used := created.Add(time.Hour)
	cols := append(append([]string{}, apiKeyRowColumns...), "owner_active", "email")

	mock.ExpectQuery(`FROM api_keys k\s+JOIN users u ON u.id = k.user_id`).
		WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("key-1", "owner-1", "hash-1", "deadbeef", "", created, created.AddDate(1, 0, 0), used, true, false, "a@b.c"))

	rec, err := NewAPIKeyRepo(db).FindByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", rec.Key.ID)
	assert.False(t, rec.OwnerActive)
	require.NotNil(t, rec.Key.LastUsed)
	assert.Equal(t, used, *rec.Key.LastUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_FindByHash_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM api_keys k`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err = NewAPIKeyRepo(db).FindByHash(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_Revoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAPIKeyRepo(db)

	mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE WHERE key_hash = \$1 AND user_id = \$2`).
		WithArgs("hash-1", "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE WHERE key_hash = \$1 AND user_id = \$2`).
		WithArgs("hash-1", "someone-else").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Revoke(context.Background(), "hash-1", "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Revoke(context.Background(), "hash-1", "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_ListAndSweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewAPIKeyRepo(db)

	mock.ExpectQuery(`WHERE k.user_id = \$1\s+ORDER BY k.created_at DESC`).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows(apiKeyRowColumns).
			AddRow("k2", "owner-1", "h2", "22222222", "", now, now.AddDate(1, 0, 0), nil, true).
			AddRow("k1", "owner-1", "h1", "11111111", "", now.AddDate(-1, 0, 0), now, nil, false))
	mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE WHERE is_active AND expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE api_keys SET last_used`).
		WithArgs("k2", now).
		WillReturnError(errors.New("conn reset"))

	keys, err := repo.ListByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "22222222", keys[0].KeySuffix)

	n, err := repo.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Error(t, repo.TouchLastUsed(context.Background(), "k2", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}
