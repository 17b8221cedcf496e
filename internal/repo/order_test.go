package repo_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"shopflow-backend/internal/entities"
	"shopflow-backend/internal/repo"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepo_CodeExists(t *testing.T) {
	query := regexp.QuoteMeta("SELECT 1 FROM orders WHERE order_code = $1")

	t.Run("taken", func(t *testing.T) {
		db, mock := newMockDB(t)
		r := repo.NewOrderRepo(db)

		mock.ExpectQuery(query).
			WithArgs("ORDAAA11").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		exists, err := r.CodeExists(context.Background(), "ORDAAA11")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("free", func(t *testing.T) {
		db, mock := newMockDB(t)
		r := repo.NewOrderRepo(db)

		mock.ExpectQuery(query).
			WithArgs("ORDBBB22").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

		exists, err := r.CodeExists(context.Background(), "ORDBBB22")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	now := time.Now().UTC()

	t.Run("guarded update lands", func(t *testing.T) {
		db, mock := newMockDB(t)
		r := repo.NewOrderRepo(db)

		query := regexp.QuoteMeta(
			"UPDATE orders SET status = $1, payment_status = $2, updated_at = $3 WHERE order_id = $4 AND status = $5")
		mock.ExpectExec(query).
			WithArgs("confirmed", "pending", now, "o-1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := r.UpdateStatus(context.Background(), repo.UpdateStatusParams{
			OrderID:       "o-1",
			From:          entities.StatusPending,
			To:            entities.StatusConfirmed,
			PaymentStatus: entities.PaymentPending,
			UpdatedAt:     now,
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale status misses the guard", func(t *testing.T) {
		db, mock := newMockDB(t)
		r := repo.NewOrderRepo(db)

		query := regexp.QuoteMeta(
			"UPDATE orders SET status = $1, payment_status = $2, updated_at = $3 WHERE order_id = $4 AND status = $5")
		mock.ExpectExec(query).
			WithArgs("confirmed", "pending", now, "o-1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := r.UpdateStatus(context.Background(), repo.UpdateStatusParams{
			OrderID:       "o-1",
			From:          entities.StatusPending,
			To:            entities.StatusConfirmed,
			PaymentStatus: entities.PaymentPending,
			UpdatedAt:     now,
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("optional columns only set when present", func(t *testing.T) {
		db, mock := newMockDB(t)
		r := repo.NewOrderRepo(db)

		delivered := now.Add(-time.Minute)
		query := regexp.QuoteMeta(
			"UPDATE orders SET status = $1, payment_status = $2, updated_at = $3, tracking_number = $4, delivered_at = $5 WHERE order_id = $6 AND status = $7")
		mock.ExpectExec(query).
			WithArgs("delivered", "paid", now, "TRACK-9", delivered, "o-1", "shipped").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := r.UpdateStatus(context.Background(), repo.UpdateStatusParams{
			OrderID:        "o-1",
			From:           entities.StatusShipped,
			To:             entities.StatusDelivered,
			PaymentStatus:  entities.PaymentPaid,
			TrackingNumber: "TRACK-9",
			DeliveredAt:    &delivered,
			UpdatedAt:      now,
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepo_GetOrderByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r := repo.NewOrderRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE order_id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	_, err := r.GetOrderByID(context.Background(), "nope")
	require.ErrorIs(t, err, entities.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_Revenue(t *testing.T) {
	db, mock := newMockDB(t)
	r := repo.NewOrderRepo(db)

	query := regexp.QuoteMeta("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status IN ($1,$2)")
	mock.ExpectQuery(query).
		WithArgs("delivered", "shipped").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1234.56))

	revenue, err := r.Revenue(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, revenue, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_StatusCounts(t *testing.T) {
	db, mock := newMockDB(t)
	r := repo.NewOrderRepo(db)

	query := regexp.QuoteMeta(
		"SELECT status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS total_value FROM orders GROUP BY status")
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "total_value"}).
			AddRow("pending", 2, 60.0).
			AddRow("delivered", 1, 120.0))

	counts, err := r.StatusCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, entities.StatusPending, counts[0].Status)
	assert.Equal(t, 2, counts[0].Count)
	assert.InDelta(t, 120.0, counts[1].Value, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
