package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/config"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/metrics"
	"github.com/staycare/booking-backend/internal/models"
)

// AmendmentService resolves amendment logs. Approve keeps the amended
// answer, reject restores the previous one. Both are terminal.
type AmendmentService struct {
	amendments    AmendmentStore
	bookings      BookingStore
	qaPairs       QaPairStore
	templates     TemplateStore
	equipment     EquipmentStore
	triggers      *EmailTriggerService
	audit         AuditLogger
	cascadePolicy string
	logger        *logrus.Logger
	now           func() time.Time
}

// NewAmendmentService creates a new AmendmentService
func NewAmendmentService(
	amendments AmendmentStore,
	bookings BookingStore,
	qaPairs QaPairStore,
	templates TemplateStore,
	equipment EquipmentStore,
	triggers *EmailTriggerService,
	audit AuditLogger,
	cfg config.ReconcileConfig,
	logger *logrus.Logger,
) *AmendmentService {
	return &AmendmentService{
		amendments:    amendments,
		bookings:      bookings,
		qaPairs:       qaPairs,
		templates:     templates,
		equipment:     equipment,
		triggers:      triggers,
		audit:         audit,
		cascadePolicy: cfg.RejectCascade,
		logger:        logger,
		now:           time.Now,
	}
}

// ListForBooking returns the amendment logs of an existing booking
func (s *AmendmentService) ListForBooking(ctx context.Context, bookingID int64, pendingOnly bool) ([]*models.Log, error) {
	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.amendments.ListForBooking(ctx, bookingID, pendingOnly)
}

// Review approves or rejects a log according to req
func (s *AmendmentService) Review(ctx context.Context, logID int64, req models.ReviewAmendmentRequest, actor Actor) (*models.Log, error) {
	if req.Approved != nil && *req.Approved {
		return s.Approve(ctx, logID, req, actor)
	}
	return s.Reject(ctx, logID, actor)
}

// Approve marks a pending log approved and fires the email rules watching its question.
// The amended answer is already stored, so no QaPair is written.
func (s *AmendmentService) Approve(ctx context.Context, logID int64, req models.ReviewAmendmentRequest, actor Actor) (*models.Log, error) {
	log, err := s.pendingLog(ctx, logID)
	if err != nil {
		return nil, err
	}

	approver := req.ApprovedBy
	if approver == "" {
		approver = actor.Name
	}
	at := s.now()
	if req.ApprovalDate != nil {
		at = *req.ApprovalDate
	}

	review := log.Data.Review()
	review.Approve(approver, at)
	if req.Note != "" {
		review.Note = req.Note
	}

	if err := s.amendments.SaveReview(ctx, log); err != nil {
		return nil, resolvedIfGone(err)
	}

	metrics.AmendmentsResolved.WithLabelValues(string(log.Type), "approved").Inc()
	s.safeAudit("LogAmendmentApproved", s.audit.LogAmendmentApproved(ctx, actor, log))
	s.fireApprovalTriggers(ctx, log)

	s.logger.WithFields(logrus.Fields{
		"log_id":      log.ID,
		"booking_id":  log.LoggableID,
		"approved_by": approver,
	}).Info("Amendment approved")

	return log, nil
}

// Reject reverts the amended value and deletes the log in one transaction
func (s *AmendmentService) Reject(ctx context.Context, logID int64, actor Actor) (*models.Log, error) {
	log, err := s.pendingLog(ctx, logID)
	if err != nil {
		return nil, err
	}

	var restored string
	switch data := log.Data.(type) {
	case *models.QaPairLogData:
		restored = CoerceRevertAnswer(data.QaPair.QuestionType, data.QaPair.OldAnswer)
		dependents, err := s.dependentsToClear(ctx, log.LoggableID, data, restored)
		if err != nil {
			return nil, err
		}
		if err := s.amendments.RevertQaPair(ctx, log, restored, dependents); err != nil {
			return nil, resolvedIfGone(err)
		}
	case *models.EquipmentLogData:
		equipmentID, err := s.previousEquipment(ctx, data)
		if err != nil {
			return nil, err
		}
		if err := s.amendments.RevertEquipment(ctx, log, equipmentID); err != nil {
			return nil, resolvedIfGone(err)
		}
		restored = data.Equipment.OldName
	default:
		return nil, fmt.Errorf("unsupported log data %T", log.Data)
	}

	metrics.AmendmentsResolved.WithLabelValues(string(log.Type), "rejected").Inc()
	s.safeAudit("LogAmendmentRejected", s.audit.LogAmendmentRejected(ctx, actor, log, restored))

	s.logger.WithFields(logrus.Fields{
		"log_id":     log.ID,
		"booking_id": log.LoggableID,
		"question":   log.Data.Question(),
	}).Info("Amendment rejected")

	return log, nil
}

func (s *AmendmentService) pendingLog(ctx context.Context, logID int64) (*models.Log, error) {
	log, err := s.amendments.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if log.Approved() {
		return nil, ErrLogResolved
	}
	return log, nil
}

// dependentsToClear lists answers of the same section whose dependency on
// the reverted question no longer holds. Empty unless the cascade policy is enabled.
func (s *AmendmentService) dependentsToClear(ctx context.Context, bookingID int64, data *models.QaPairLogData, restored string) ([]string, error) {
	if s.cascadePolicy != config.RejectCascadeClearDependents {
		return nil, nil
	}

	sections, err := s.qaPairs.ListSections(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sections: %w", err)
	}
	section, ok := lo.Find(sections, func(sec models.Section) bool { return sec.ID == data.QaPair.SectionID })
	if !ok {
		return nil, nil
	}

	questions, err := s.templates.QuestionsForSections(ctx, []int64{section.TemplateSectionID})
	if err != nil {
		return nil, fmt.Errorf("failed to load template questions: %w", err)
	}

	answers := map[string]string{data.QaPair.Question: restored}
	dependents := lo.FilterMap(questions, func(q models.TemplateQuestion, _ int) (string, bool) {
		dependsOnReverted := q.DependsOnQuestion != nil && *q.DependsOnQuestion == data.QaPair.Question
		return q.Question, dependsOnReverted && !dependencyMet(q, answers, answers)
	})
	return dependents, nil
}

// previousEquipment resolves the equipment selected before the amendment, by id or else by name
func (s *AmendmentService) previousEquipment(ctx context.Context, data *models.EquipmentLogData) (int64, error) {
	if data.Equipment.OldID != nil && *data.Equipment.OldID != 0 {
		return *data.Equipment.OldID, nil
	}
	if data.Equipment.OldName == "" {
		return 0, fmt.Errorf("no previous equipment recorded for %q", data.Equipment.Question)
	}

	item, err := s.equipment.GetByName(ctx, data.Equipment.OldName)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve previous equipment %q: %w", data.Equipment.OldName, err)
	}
	return item.ID, nil
}

func (s *AmendmentService) fireApprovalTriggers(ctx context.Context, log *models.Log) {
	booking, err := s.bookings.GetByID(ctx, log.LoggableID)
	if err != nil {
		s.logger.WithError(err).WithField("log_id", log.ID).Warn("Failed to load booking for approval triggers")
		return
	}

	guest, err := s.bookings.GetGuest(ctx, booking.GuestID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to load booking guest")
		guest = nil
	}

	if _, err := s.triggers.Fire(ctx, models.TriggerOnAmendmentApproved, booking, guest, []string{log.Data.Question()}); err != nil {
		s.logger.WithError(err).WithField("log_id", log.ID).Error("Failed to fire approval triggers")
	}
}

func (s *AmendmentService) safeAudit(operation string, err error) {
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Error("Audit log failed")
	}
}

// resolvedIfGone maps a vanished pending log to ErrLogResolved
func resolvedIfGone(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrLogResolved
	}
	return err
}

// CoerceRevertAnswer converts a recorded previous answer back into its stored
// form. Radio and select answers reduce to their value (or name), checkbox
// answers are re-encoded JSON arrays and anything else is stored as is.
// Values that cannot be interpreted fall back to their raw text.
func CoerceRevertAnswer(questionType models.QuestionType, raw json.RawMessage) string {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return strings.TrimSpace(string(raw))
	}

	// JSON kept inside a string is unwrapped for choice types
	if s, ok := value.(string); ok && isChoiceType(questionType) {
		var inner interface{}
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			value = inner
		}
	}

	switch questionType {
	case models.QuestionTypeRadio, models.QuestionTypeSelect:
		if choice := choiceValue(value); choice != "" {
			return choice
		}
	case models.QuestionTypeCheckbox:
		if items, ok := value.([]interface{}); ok {
			if b, err := json.Marshal(items); err == nil {
				return string(b)
			}
		}
	}

	return models.NormalizeAnswer(raw)
}

func isChoiceType(t models.QuestionType) bool {
	return t == models.QuestionTypeRadio || t == models.QuestionTypeSelect || t == models.QuestionTypeCheckbox
}
