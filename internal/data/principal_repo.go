package data

import (
	"context"
	"database/sql"
	"strings"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

// PrincipalRepo stores key owners in the users table.
type PrincipalRepo struct {
	DB *sql.DB
}

var _ core.PrincipalRepository = (*PrincipalRepo)(nil)

// NewPrincipalRepo creates a PrincipalRepo.
func NewPrincipalRepo(db *sql.DB) *PrincipalRepo {
	return &PrincipalRepo{DB: db}
}

// GetOrCreateBySubject provisions the owner on first login and refreshes their email after.
func (r *PrincipalRepo) GetOrCreateBySubject(ctx context.Context, subject, email string) (*model.Principal, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperrors.ValidationField("subject", "subject is required")
	}

	var p model.Principal
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (subject, email)
		VALUES ($1, $2)
		ON CONFLICT (subject) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, subject, email, is_active, created_at`,
		subject, strings.TrimSpace(email),
	).Scan(&p.ID, &p.Subject, &p.Email, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &p, nil
}

// GetBySubject looks an owner up by login subject.
func (r *PrincipalRepo) GetBySubject(ctx context.Context, subject string) (*model.Principal, error) {
	var p model.Principal
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, subject, email, is_active, created_at FROM users WHERE subject = $1`, subject,
	).Scan(&p.ID, &p.Subject, &p.Email, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &p, nil
}
