package ratelimit

import (
	"context"
	"errors"
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
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func TestCountBetween_ByIP(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "api_requests" WHERE endpoint = \$1 AND \(request_time BETWEEN \$2 AND \$3\) AND ip_address = \$4`).
		WithArgs("/api/v1/auth/login", sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountBetween(context.Background(), "/api/v1/auth/login", Caller{IP: "10.0.0.1"}, now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountBetween_ByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	now := time.Now().UTC()
	id := uint(3)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "api_requests" WHERE .*\(user_type = \$4 AND user_id = \$5\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountBetween(context.Background(), "/api/v1/auth/me",
		Caller{IP: "10.0.0.1", UserType: "donor", UserID: &id}, now.Add(-time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountBetween_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT count`).WillReturnError(errors.New("connection refused"))

	_, err := repo.CountBetween(context.Background(), "/x", Caller{IP: "1.1.1.1"}, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnresponsiveDatabase)
}

func TestCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`INSERT INTO "api_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	rec := &RequestRecord{Endpoint: "/x", Method: "GET", IPAddress: "1.1.1.1", ResponseCode: 200, RequestTime: time.Now()}
	require.NoError(t, repo.Create(context.Background(), rec))
	assert.Equal(t, uint(42), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	cutoff := time.Now().Add(-24 * time.Hour)

	mock.ExpectExec(`DELETE FROM "api_requests" WHERE request_time < \$1`).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "api_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT \* FROM "api_requests" ORDER BY request_time DESC,id DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "endpoint", "method", "response_code"}).
			AddRow(3, "/a", "GET", 200).
			AddRow(2, "/b", "POST", 401))

	records, total, err := repo.List(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 2)
	assert.Equal(t, uint(3), records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
