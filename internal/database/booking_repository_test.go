package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var bookingRowColumns = []string{
	"id", "uuid", "reference_id", "guest_id", "status", "status_name", "status_logs",
	"eligibility", "eligibility_name", "complete", "type", "course_id", "metainfo",
	"deleted_at", "created_at", "updated_at",
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`FROM bookings`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
				int64(1), "b-uuid", "100001", int64(7),
				[]byte(`{"name":"booking_confirmed","label":"stale label","color":"grey"}`),
				"booking_confirmed",
				[]byte(`[{"status":"pending_approval","created_at":"2024-05-01T08:00:00Z"},{"status":"booking_confirmed","created_at":"2024-05-03T08:00:00Z"}]`),
				[]byte(`{"name":"eligible","label":"Eligible","color":"green"}`),
				"eligible", true, "Returning Guest", nil,
				[]byte(`{"submit_emails_sent":true,"amendment_emails_sent":2}`),
				nil, now, now,
			))

		booking, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusBookingConfirmed, booking.Status.Name)
		assert.Equal(t, "Booking Confirmed", booking.Status.Label)
		assert.Equal(t, models.EligibilityEligible, booking.EligibilityName)
		assert.Equal(t, models.BookingTypeReturningGuest, booking.Type)
		assert.Len(t, booking.StatusLogs, 2)
		assert.True(t, booking.Metainfo.SubmitEmailsSent)
		assert.Equal(t, 2, booking.Metainfo.AmendmentEmailsSent)
		assert.False(t, booking.HasCourse())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`FROM bookings`).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns))

		booking, err := repo.GetByID(context.Background(), 2)
		assert.Nil(t, booking)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`FROM bookings`).
			WithArgs(int64(3)).
			WillReturnError(fmt.Errorf("connection reset"))

		_, err := repo.GetByID(context.Background(), 3)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "failed to get booking")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByUUID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE uuid = \$1 AND deleted_at IS NULL`).
		WithArgs("b-uuid").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
			int64(4), "b-uuid", "100004", int64(7),
			[]byte(`{"name":"pending_approval"}`), "pending_approval", []byte(`[]`),
			[]byte(`{"name":"pending_eligibility"}`), "pending_eligibility", false, "First-Time Guest", nil,
			[]byte(`{}`), nil, now, now,
		))
	mock.ExpectQuery(`WHERE uuid = \$1 AND deleted_at IS NULL`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	booking, err := repo.GetByUUID(context.Background(), "b-uuid")
	require.NoError(t, err)
	assert.Equal(t, int64(4), booking.ID)
	assert.Equal(t, models.StatusPendingApproval, booking.Status.Name)

	_, err = repo.GetByUUID(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEquipmentRepository_ListForBooking(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEquipmentRepository(db)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM booking_equipment`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "equipment_id", "question", "created_at"}).
			AddRow(int64(4), int64(3), "Mobility Aid", now))
	mock.ExpectQuery(`FROM booking_equipment`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "equipment_id", "question", "created_at"}))

	links, err := repo.ListForBooking(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, int64(3), links[0].EquipmentID)

	links, err = repo.ListForBooking(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_UpdateLifecycle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	booking := &models.Booking{ID: 1, Complete: true}
	require.NoError(t, booking.SetStatus(models.StatusBookingAmended, now))
	require.NoError(t, booking.SetEligibility(models.EligibilityPending))

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE bookings SET`).
			WithArgs(
				booking.Status, "booking_amended", booking.StatusLogs,
				booking.Eligibility, "pending_eligibility", true,
				booking.Metainfo, int64(1),
			).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		require.NoError(t, repo.UpdateLifecycle(context.Background(), booking))
		assert.Equal(t, now, booking.UpdatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Deleted Booking", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE bookings SET`).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

		err := repo.UpdateLifecycle(context.Background(), booking)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_UpdateMetainfo(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	meta := models.Metainfo{DefaultNotificationsGenerated: true}
	mock.ExpectExec(`UPDATE bookings SET metainfo`).
		WithArgs(`{"default_notifications_generated":true}`, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateMetainfo(context.Background(), 1, meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}
