package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/internal/utils"
)

// Actor identifies who performed a staff action
type Actor struct {
	UserID    *uuid.UUID
	Name      string
	IPAddress string
	UserAgent string
}

// AuditService writes staff actions to the audit_logs table
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{
		db: db,
	}
}

// AuditEvent represents an action to be logged
type AuditEvent struct {
	UserID     *uuid.UUID             // nil for system actions
	Action     string                 // e.g. "status_change", "amendment_approved"
	EntityType string                 // "booking" or "amendment_log"
	EntityID   int64                  // id of the affected entity
	IPAddress  string                 // Client IP address
	UserAgent  string                 // Client user agent
	Details    map[string]interface{} // stored as JSONB
}

// LogStatusChange records a manual lifecycle or eligibility change
func (s *AuditService) LogStatusChange(ctx context.Context, actor Actor, bookingID int64, axis, from, to string) error {
	return s.logEvent(ctx, actor, "status_change", "booking", bookingID, map[string]interface{}{
		"axis": axis,
		"from": from,
		"to":   to,
	})
}

// LogAmendmentApproved records the approval of an amendment log
func (s *AuditService) LogAmendmentApproved(ctx context.Context, actor Actor, log *models.Log) error {
	return s.logEvent(ctx, actor, "amendment_approved", "amendment_log", log.ID, map[string]interface{}{
		"booking_id": log.LoggableID,
		"type":       log.Type,
		"question":   log.Data.Question(),
	})
}

// LogAmendmentRejected records the rejection of an amendment log
func (s *AuditService) LogAmendmentRejected(ctx context.Context, actor Actor, log *models.Log, restored string) error {
	return s.logEvent(ctx, actor, "amendment_rejected", "amendment_log", log.ID, map[string]interface{}{
		"booking_id": log.LoggableID,
		"type":       log.Type,
		"question":   log.Data.Question(),
		"restored":   restored,
	})
}

func (s *AuditService) logEvent(ctx context.Context, actor Actor, action, entityType string, entityID int64, details map[string]interface{}) error {
	details["device_info"] = utils.ParseUserAgent(actor.UserAgent)
	if actor.Name != "" {
		details["actor"] = actor.Name
	}

	return s.insert(ctx, AuditEvent{
		UserID:     actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Details:    details,
	})
}

// insert is the internal method that writes to the audit_logs table
func (s *AuditService) insert(ctx context.Context, event AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = s.db.ExecContext(ctx,
		query,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DiscardAudit drops audit events. Used when audit logging is disabled.
type DiscardAudit struct{}

func (DiscardAudit) LogStatusChange(context.Context, Actor, int64, string, string, string) error {
	return nil
}

func (DiscardAudit) LogAmendmentApproved(context.Context, Actor, *models.Log) error { return nil }

func (DiscardAudit) LogAmendmentRejected(context.Context, Actor, *models.Log, string) error {
	return nil
}

func (DiscardAudit) CleanupOldAuditLogs(context.Context, time.Duration) (int64, error) { return 0, nil }
