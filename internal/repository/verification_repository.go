package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/credassure/credassure-api/internal/models"
)

// VerificationRepository persists identity verification state per
// (member, bureau) pair.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs the repository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// GetOrCreate returns the verification row for the pair, creating a pending
// one on first consult. The unique index on (member_id, bureau) makes the
// lazy insert race-safe.
func (r *VerificationRepository) GetOrCreate(ctx context.Context, memberID string, bureau models.Bureau) (*models.IdentityVerification, error) {
	now := time.Now().UTC()
	const insert = `INSERT INTO identity_verifications (id, member_id, bureau, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (member_id, bureau) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), memberID, bureau, models.VerificationPending, now); err != nil {
		return nil, fmt.Errorf("ensure verification row: %w", err)
	}

	const query = `SELECT id, member_id, bureau, status, verified_at, created_at, updated_at
	FROM identity_verifications WHERE member_id = $1 AND bureau = $2`
	var verification models.IdentityVerification
	if err := r.db.GetContext(ctx, &verification, query, memberID, bureau); err != nil {
		return nil, fmt.Errorf("fetch verification row: %w", err)
	}
	return &verification, nil
}

// MarkVerified records a completed identity verification for the pair.
func (r *VerificationRepository) MarkVerified(ctx context.Context, memberID string, bureau models.Bureau) error {
	now := time.Now().UTC()
	const query = `UPDATE identity_verifications
	SET status = $1, verified_at = $2, updated_at = $2
	WHERE member_id = $3 AND bureau = $4`
	result, err := r.db.ExecContext(ctx, query, models.VerificationVerified, now, memberID, bureau)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark verified rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
