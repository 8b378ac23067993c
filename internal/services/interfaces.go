package services

import (
	"context"
	"time"

	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/models"
)

// BookingStore is the booking persistence used by the services
type BookingStore interface {
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Booking, error)
	UpdateLifecycle(ctx context.Context, booking *models.Booking) error
	UpdateMetainfo(ctx context.Context, bookingID int64, meta models.Metainfo) error
	GetGuest(ctx context.Context, guestID int64) (*models.Guest, error)
}

// QaPairStore persists question/answer batches
type QaPairStore interface {
	SaveBatch(ctx context.Context, bookingID int64, changes []models.Change, equipment []models.EquipmentChange) (*database.SaveBatchResult, error)
	ListSections(ctx context.Context, bookingID int64) ([]models.Section, error)
}

// TemplateStore reads questionnaire templates
type TemplateStore interface {
	QuestionsForSections(ctx context.Context, templateSectionIDs []int64) ([]models.TemplateQuestion, error)
}

// AmendmentStore persists amendment logs
type AmendmentStore interface {
	MergePending(ctx context.Context, bookingID int64, entries []models.LogData) ([]database.MergeOutcome, error)
	GetByID(ctx context.Context, id int64) (*models.Log, error)
	ListForBooking(ctx context.Context, bookingID int64, pendingOnly bool) ([]*models.Log, error)
	SaveReview(ctx context.Context, log *models.Log) error
	RevertQaPair(ctx context.Context, log *models.Log, answer string, dependents []string) error
	RevertEquipment(ctx context.Context, log *models.Log, equipmentID int64) error
}

// EquipmentStore looks up equipment items
type EquipmentStore interface {
	GetByName(ctx context.Context, name string) (*models.Equipment, error)
}

// TriggerStore lists email trigger rules
type TriggerStore interface {
	ListByEvent(ctx context.Context, event models.TriggerEvent) ([]models.EmailTrigger, error)
}

// ScheduledTaskStore persists deferred tasks
type ScheduledTaskStore interface {
	Create(ctx context.Context, task models.Task, runAt time.Time) (*models.ScheduledTask, error)
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.ScheduledTask, error)
	MarkDispatched(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

// SettingStore reads system settings
type SettingStore interface {
	GetByKey(ctx context.Context, key string) (*models.SystemSetting, error)
}

// Dispatcher hands tasks to the external queue
type Dispatcher interface {
	Dispatch(ctx context.Context, task models.Task) error
}

// RecipientsSource resolves the staff addresses notified of booking changes
type RecipientsSource interface {
	Recipients(ctx context.Context) ([]string, error)
}

// AuditLogger records staff actions
type AuditLogger interface {
	LogStatusChange(ctx context.Context, actor Actor, bookingID int64, axis, from, to string) error
	LogAmendmentApproved(ctx context.Context, actor Actor, log *models.Log) error
	LogAmendmentRejected(ctx context.Context, actor Actor, log *models.Log, restored string) error
}
