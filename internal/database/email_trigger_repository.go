package database

import (
	"context"
	"fmt"

	"github.com/staycare/booking-backend/internal/models"
)

// EmailTriggerRepository handles database operations for email_triggers table
type EmailTriggerRepository struct {
	db DB
}

// NewEmailTriggerRepository creates a new EmailTriggerRepository
func NewEmailTriggerRepository(db DB) *EmailTriggerRepository {
	return &EmailTriggerRepository{db: db}
}

// ListByEvent returns the enabled rules for an event
func (r *EmailTriggerRepository) ListByEvent(ctx context.Context, event models.TriggerEvent) ([]models.EmailTrigger, error) {
	triggers := []models.EmailTrigger{}
	query := `
		SELECT id, name, template, recipient, trigger_on, questions, enabled, created_at, updated_at
		FROM email_triggers
		WHERE trigger_on = $1 AND enabled = TRUE
		ORDER BY id`
	if err := r.db.SelectContext(ctx, &triggers, query, event); err != nil {
		return nil, fmt.Errorf("failed to list email triggers: %w", err)
	}
	return triggers, nil
}
