package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestProfileRepository_GetByOTP(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	sentAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "email", "role", "otp", "otp_created_at", "last_sent_at"}).
		AddRow("7a1e8f0c-3a55-4a8b-9a61-6b1f1c1d2e3f", "mario@example.com", "std_user", "482913", sentAt, sentAt)
	mock.ExpectQuery(`SELECT \* FROM "user_profile" WHERE otp = \$1`).WillReturnRows(rows)

	profile, err := repo.GetByOTP(context.Background(), "482913")
	require.NoError(t, err)
	require.NotNil(t, profile.OTP)
	assert.Equal(t, "482913", *profile.OTP)
	assert.Equal(t, "mario@example.com", profile.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetByOTPNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "user_profile" WHERE otp = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByOTP(context.Background(), "000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_SetDone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectExec(`UPDATE "lf_access_requests" SET "done"=\$1 WHERE id = \$2`).
		WithArgs(true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetDone(context.Background(), 7, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CountPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "lf_access_requests" WHERE done IS NULL OR done = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
