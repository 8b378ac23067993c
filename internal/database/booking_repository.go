package database

import (
	"context"
	"fmt"

	"github.com/staycare/booking-backend/internal/models"
)

const bookingColumns = `
	id, uuid, reference_id, guest_id, status, status_name, status_logs,
	eligibility, eligibility_name, complete, type, course_id, metainfo,
	deleted_at, created_at, updated_at`

// BookingRepository handles database operations for bookings
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID retrieves a booking that has not been soft-deleted
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE id = $1 AND deleted_at IS NULL`

	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, notFound(err, "booking")
	}
	return &booking, nil
}

// GetByUUID retrieves a booking by its public UUID
func (r *BookingRepository) GetByUUID(ctx context.Context, uuid string) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE uuid = $1 AND deleted_at IS NULL`

	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, uuid); err != nil {
		return nil, notFound(err, "booking")
	}
	return &booking, nil
}

// UpdateLifecycle persists the status, eligibility, completion and metainfo fields
func (r *BookingRepository) UpdateLifecycle(ctx context.Context, booking *models.Booking) error {
	query := `
		UPDATE bookings SET
			status = $1,
			status_name = $2,
			status_logs = $3,
			eligibility = $4,
			eligibility_name = $5,
			complete = $6,
			metainfo = $7,
			updated_at = NOW()
		WHERE id = $8 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		booking.Status,
		booking.StatusName,
		booking.StatusLogs,
		booking.Eligibility,
		booking.EligibilityName,
		booking.Complete,
		booking.Metainfo,
		booking.ID,
	).Scan(&booking.UpdatedAt)
	if err != nil {
		return notFound(err, "booking")
	}
	return nil
}

// UpdateMetainfo persists only the metainfo column
func (r *BookingRepository) UpdateMetainfo(ctx context.Context, bookingID int64, meta models.Metainfo) error {
	query := `UPDATE bookings SET metainfo = $1, updated_at = NOW() WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, meta, bookingID); err != nil {
		return fmt.Errorf("failed to update booking metainfo: %w", err)
	}
	return nil
}

// GetGuest retrieves the guest that owns a booking
func (r *BookingRepository) GetGuest(ctx context.Context, guestID int64) (*models.Guest, error) {
	query := `
		SELECT id, name, email, phone, created_at
		FROM guests
		WHERE id = $1`

	var guest models.Guest
	if err := r.db.GetContext(ctx, &guest, query, guestID); err != nil {
		return nil, notFound(err, "guest")
	}
	return &guest, nil
}
