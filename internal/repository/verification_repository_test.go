package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/models"
)

func newVerificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVerificationRepositoryGetOrCreate(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()

	repo := NewVerificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identity_verifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rows := sqlmock.NewRows([]string{"id", "member_id", "bureau", "status", "verified_at", "created_at", "updated_at"}).
		AddRow("ver-1", "member-1", string(models.BureauTransUnion), string(models.VerificationPending), nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, member_id, bureau, status").
		WithArgs("member-1", string(models.BureauTransUnion)).
		WillReturnRows(rows)

	verification, err := repo.GetOrCreate(context.Background(), "member-1", models.BureauTransUnion)
	require.NoError(t, err)
	require.Equal(t, models.VerificationPending, verification.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryMarkVerified(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()

	repo := NewVerificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE identity_verifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkVerified(context.Background(), "member-1", models.BureauEquifax))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryMarkVerifiedMissingRow(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()

	repo := NewVerificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE identity_verifications")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkVerified(context.Background(), "member-1", models.BureauEquifax)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
