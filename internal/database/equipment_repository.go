package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/staycare/booking-backend/internal/models"
)

// EquipmentRepository handles database operations for equipment and booking links
type EquipmentRepository struct {
	db DB
}

// NewEquipmentRepository creates a new EquipmentRepository
func NewEquipmentRepository(db DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// GetByName retrieves an equipment item by its exact name
func (r *EquipmentRepository) GetByName(ctx context.Context, name string) (*models.Equipment, error) {
	query := `SELECT id, name, category FROM equipment WHERE name = $1 ORDER BY id LIMIT 1`

	var item models.Equipment
	if err := r.db.GetContext(ctx, &item, query, name); err != nil {
		return nil, notFound(err, "equipment")
	}
	return &item, nil
}

// ListForBooking returns the equipment links of a booking
func (r *EquipmentRepository) ListForBooking(ctx context.Context, bookingID int64) ([]models.BookingEquipment, error) {
	links := []models.BookingEquipment{}
	query := `
		SELECT booking_id, equipment_id, question, created_at
		FROM booking_equipment
		WHERE booking_id = $1
		ORDER BY question`
	if err := r.db.SelectContext(ctx, &links, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list booking equipment: %w", err)
	}
	return links, nil
}

// linkEquipment points the question's equipment link at equipmentID
func linkEquipment(ctx context.Context, exec sqlx.ExecerContext, bookingID int64, question string, equipmentID int64) error {
	query := `
		INSERT INTO booking_equipment (booking_id, equipment_id, question, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (booking_id, question) DO UPDATE SET equipment_id = EXCLUDED.equipment_id`

	if _, err := exec.ExecContext(ctx, query, bookingID, equipmentID, question); err != nil {
		return fmt.Errorf("failed to link equipment for %q: %w", question, err)
	}
	return nil
}
