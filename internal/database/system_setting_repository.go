package database

import (
	"context"
	"fmt"

	"github.com/staycare/booking-backend/internal/models"
)

// SystemSettingRepository handles database operations for system_settings table
type SystemSettingRepository struct {
	db DB
}

// NewSystemSettingRepository creates a new SystemSettingRepository
func NewSystemSettingRepository(db DB) *SystemSettingRepository {
	return &SystemSettingRepository{db: db}
}

// GetAll retrieves all system settings
func (r *SystemSettingRepository) GetAll(ctx context.Context) ([]models.SystemSetting, error) {
	query := `
		SELECT id, setting_key, setting_value, description, created_at, updated_at
		FROM system_settings
		ORDER BY setting_key
	`

	settings := []models.SystemSetting{}
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

// GetByKey retrieves a system setting by its key
func (r *SystemSettingRepository) GetByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	query := `
		SELECT id, setting_key, setting_value, description, created_at, updated_at
		FROM system_settings
		WHERE setting_key = $1
	`

	var setting models.SystemSetting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		return nil, notFound(err, "setting "+key)
	}
	return &setting, nil
}

// Update updates a system setting's value
func (r *SystemSettingRepository) Update(ctx context.Context, key string, value string) error {
	query := `
		UPDATE system_settings
		SET setting_value = $1, updated_at = NOW()
		WHERE setting_key = $2
	`

	result, err := r.db.ExecContext(ctx, query, value, key)
	if err != nil {
		return fmt.Errorf("failed to update setting %s: %w", key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}

	return nil
}
