package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/config"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/metrics"
	"github.com/staycare/booking-backend/internal/models"
)

// SubmissionResult is the outcome of reconciling a QA submission
type SubmissionResult struct {
	Amended  bool
	Complete bool
}

// BookingReconciler drives a booking through its lifecycle in response to
// questionnaire submissions and staff status changes
type BookingReconciler struct {
	bookings   BookingStore
	qaPairs    QaPairStore
	templates  TemplateStore
	amendments AmendmentStore
	triggers   *EmailTriggerService
	recipients RecipientsSource
	dispatcher Dispatcher
	files      FileStore
	audit      AuditLogger
	cfg        config.NotificationConfig
	logger     *logrus.Logger
	now        func() time.Time
}

// NewBookingReconciler creates a new BookingReconciler
func NewBookingReconciler(
	bookings BookingStore,
	qaPairs QaPairStore,
	templates TemplateStore,
	amendments AmendmentStore,
	triggers *EmailTriggerService,
	recipients RecipientsSource,
	dispatcher Dispatcher,
	files FileStore,
	audit AuditLogger,
	cfg config.NotificationConfig,
	logger *logrus.Logger,
) *BookingReconciler {
	return &BookingReconciler{
		bookings:   bookings,
		qaPairs:    qaPairs,
		templates:  templates,
		amendments: amendments,
		triggers:   triggers,
		recipients: recipients,
		dispatcher: dispatcher,
		files:      files,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// GetBooking returns a booking that has not been soft-deleted
func (s *BookingReconciler) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

// GetBookingByUUID looks a booking up by its public UUID
func (s *BookingReconciler) GetBookingByUUID(ctx context.Context, bookingUUID string) (*models.Booking, error) {
	return s.bookings.GetByUUID(ctx, bookingUUID)
}

// ReconcileSubmission persists a QA batch and applies its consequences:
// completion, amendment logging, status transitions and one-shot side effects.
// Nothing beyond the batch write happens while the booking is incomplete.
func (s *BookingReconciler) ReconcileSubmission(ctx context.Context, bookingID int64, req models.SaveQaPairsRequest, actor Actor) (*SubmissionResult, error) {
	start := s.now()
	result := &SubmissionResult{}
	defer func() {
		metrics.ReconcileDuration.WithLabelValues(strconv.FormatBool(result.Amended)).Observe(s.now().Sub(start).Seconds())
	}()

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	batch, err := s.qaPairs.SaveBatch(ctx, booking.ID, req.QaPairs, req.EquipmentChanges)
	if err != nil {
		return nil, fmt.Errorf("failed to save answers: %w", err)
	}
	s.removeFiles(booking.ID, batch.RemovedFiles)

	complete, err := s.evaluateCompleteness(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	result.Complete = complete

	submitted := lo.SomeBy(req.QaPairs, func(c models.Change) bool { return c.Submit })
	wasComplete := booking.Complete
	if !complete || (!wasComplete && !submitted) {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"complete":   complete,
			"submitted":  submitted,
		}).Debug("Submission saved without reconciliation")
		return result, nil
	}

	now := s.now()
	priorStatus := booking.StatusName
	booking.MarkComplete()

	if wasComplete {
		result.Amended = s.recordAmendments(ctx, booking, req, batch, actor, now)
	}

	guest := s.loadGuest(ctx, booking)

	switch {
	case result.Amended && priorStatus == models.StatusBookingConfirmed:
		s.sendAmendmentNotification(ctx, booking, guest)
		s.transition(booking, models.StatusBookingAmended, now)
	case priorStatus == models.StatusPendingApproval &&
		booking.Type == models.BookingTypeReturningGuest &&
		!booking.HasCourse() &&
		booking.StatusName != models.StatusReadyToProcess:
		s.transition(booking, models.StatusReadyToProcess, now)
		s.sendStatusNotification(ctx, booking)
	}

	s.runOneShotTriggers(ctx, booking, guest, req.QaPairs, now)

	if err := s.bookings.UpdateLifecycle(ctx, booking); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to persist booking after submission")
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"status":     booking.StatusName,
		"amended":    result.Amended,
	}).Info("Submission reconciled")

	return result, nil
}

// ChangeStatus applies a staff status or eligibility change
func (s *BookingReconciler) ChangeStatus(ctx context.Context, bookingID int64, req models.StatusChangeRequest, actor Actor) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatusChange, err)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if req.Eligibility != nil {
		return s.changeEligibility(ctx, booking, req.Eligibility.Name, actor)
	}

	status := req.Status.Name
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown booking status %q", ErrInvalidStatusChange, status)
	}

	from := booking.StatusName
	s.transition(booking, status, s.now())
	if err := s.bookings.UpdateLifecycle(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	s.safeAudit("LogStatusChange", s.audit.LogStatusChange(ctx, actor, booking.ID, "status", string(from), string(status)))

	s.sendStatusNotification(ctx, booking)
	if status == models.StatusBookingConfirmed {
		guest := s.loadGuest(ctx, booking)
		if s.sendConfirmedEmailsOnce(ctx, booking, guest) {
			if err := s.bookings.UpdateMetainfo(ctx, booking.ID, booking.Metainfo); err != nil {
				s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to record confirmed emails")
			}
		}
	}

	return booking, nil
}

func (s *BookingReconciler) changeEligibility(ctx context.Context, booking *models.Booking, eligibility models.Eligibility, actor Actor) (*models.Booking, error) {
	if !eligibility.IsValid() {
		return nil, fmt.Errorf("%w: unknown eligibility %q", ErrInvalidStatusChange, eligibility)
	}

	from := booking.EligibilityName
	if err := booking.SetEligibility(eligibility); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatusChange, err)
	}
	if err := s.bookings.UpdateLifecycle(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to update booking eligibility: %w", err)
	}

	metrics.StatusTransitions.WithLabelValues("eligibility", string(eligibility)).Inc()
	s.safeAudit("LogStatusChange", s.audit.LogStatusChange(ctx, actor, booking.ID, "eligibility", string(from), string(eligibility)))
	return booking, nil
}

func (s *BookingReconciler) evaluateCompleteness(ctx context.Context, bookingID int64) (bool, error) {
	sections, err := s.qaPairs.ListSections(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to load sections: %w", err)
	}

	templateIDs := lo.Uniq(lo.Map(sections, func(sec models.Section, _ int) int64 { return sec.TemplateSectionID }))
	questions, err := s.templates.QuestionsForSections(ctx, templateIDs)
	if err != nil {
		return false, fmt.Errorf("failed to load template questions: %w", err)
	}

	return IsComplete(sections, questions), nil
}

// recordAmendments logs every dirty change. It reports whether any entry is
// awaiting review.
func (s *BookingReconciler) recordAmendments(ctx context.Context, booking *models.Booking, req models.SaveQaPairsRequest, batch *database.SaveBatchResult, actor Actor, now time.Time) bool {
	entries := amendmentEntries(req, batch, actor.Name, now)
	if len(entries) == 0 {
		return false
	}

	outcomes, err := s.amendments.MergePending(ctx, booking.ID, entries)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to record amendments")
		return false
	}

	for _, outcome := range outcomes {
		label := "merged"
		switch {
		case outcome.Log.Approved():
			label = "preapproved"
		case outcome.Created:
			label = "created"
		}
		metrics.AmendmentsRecorded.WithLabelValues(string(outcome.Log.Type), label).Inc()
	}

	return lo.SomeBy(outcomes, func(o database.MergeOutcome) bool { return !o.Log.Approved() })
}

// amendmentEntries builds log payloads for the dirty changes of a request.
// Admin submissions are recorded already approved.
func amendmentEntries(req models.SaveQaPairsRequest, batch *database.SaveBatchResult, modifiedBy string, now time.Time) []models.LogData {
	savedIDs := map[string]int64{}
	for _, pair := range batch.Saved {
		savedIDs[fmt.Sprintf("%d:%s", pair.SectionID, pair.Question)] = pair.ID
	}

	var entries []models.LogData
	for _, change := range req.QaPairs {
		if change.IsEquipment() || change.Delete || !change.IsDirty() {
			continue
		}
		entry := models.NewQaPairLogData(change, modifiedBy, now)
		if entry.QaPair.ID == nil {
			if id, ok := savedIDs[fmt.Sprintf("%d:%s", change.SectionID, change.Question)]; ok {
				entry.QaPair.ID = &id
			}
		}
		entries = append(entries, entry)
	}

	for _, change := range req.EquipmentChanges {
		if change.IsDirty() {
			entries = append(entries, models.NewEquipmentLogData(change, modifiedBy, now))
		}
	}

	if req.Flags.IsAdmin() {
		for _, entry := range entries {
			entry.Review().Approve(modifiedBy, now)
		}
	}
	return entries
}

func (s *BookingReconciler) transition(booking *models.Booking, status models.BookingStatus, now time.Time) {
	if err := booking.SetStatus(status, now); err != nil {
		// statuses passed here are validated constants
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Invalid status transition")
		return
	}
	metrics.StatusTransitions.WithLabelValues("status", string(status)).Inc()
}

func (s *BookingReconciler) runOneShotTriggers(ctx context.Context, booking *models.Booking, guest *models.Guest, changes []models.Change, now time.Time) {
	meta := &booking.Metainfo

	if !meta.DefaultNotificationsGenerated {
		meta.DefaultNotificationsGenerated = s.sendDefaultNotifications(ctx, booking, now)
	}

	if !meta.SubmitEmailsSent {
		meta.SubmitEmailsSent = s.sendSubmitEmails(ctx, booking, guest, changes)
	}

	s.sendConfirmedEmailsOnce(ctx, booking, guest)

	if s.dispatch(ctx, booking, models.TaskExportBookingPDF, models.ExportPayload{BookingID: booking.ID, UUID: booking.UUID}, nil) {
		meta.LastExportQueuedAt = &now
	}
}

// sendDefaultNotifications queues the staff notification for a newly
// completed booking and a deferred reminder
func (s *BookingReconciler) sendDefaultNotifications(ctx context.Context, booking *models.Booking, now time.Time) bool {
	recipients := s.staffRecipients(ctx)
	payload := models.NotificationPayload{
		BookingID:  booking.ID,
		Reference:  booking.ReferenceID,
		Recipients: recipients,
		Message:    fmt.Sprintf("Booking #%s has been submitted", booking.ReferenceID),
		Status:     string(booking.StatusName),
	}
	if !s.dispatch(ctx, booking, models.TaskDefaultNotifications, payload, nil) {
		return false
	}

	if s.cfg.DefaultReminder > 0 {
		runAt := now.Add(s.cfg.DefaultReminder)
		payload.Message = fmt.Sprintf("Booking #%s is waiting for review", booking.ReferenceID)
		s.dispatch(ctx, booking, models.TaskDefaultNotifications, payload, &runAt)
	}
	return true
}

func (s *BookingReconciler) sendSubmitEmails(ctx context.Context, booking *models.Booking, guest *models.Guest, changes []models.Change) bool {
	sent := true
	if guest != nil && guest.Email != "" {
		sent = s.dispatch(ctx, booking, models.TaskSubmitEmail, models.EmailPayload{
			Template:   s.cfg.SubmitTemplate,
			Recipients: []string{guest.Email},
			BookingID:  booking.ID,
			Reference:  booking.ReferenceID,
			MergeData:  mergeData(booking, guest, nil),
		}, nil)
	}

	questions := lo.Map(changes, func(c models.Change, _ int) string { return c.Question })
	if _, err := s.triggers.Fire(ctx, models.TriggerOnSubmit, booking, guest, questions); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to fire submit triggers")
	}
	return sent
}

// sendConfirmedEmailsOnce sends the confirmation emails once per entry into
// booking_confirmed. It reports whether metainfo changed.
func (s *BookingReconciler) sendConfirmedEmailsOnce(ctx context.Context, booking *models.Booking, guest *models.Guest) bool {
	if booking.StatusName != models.StatusBookingConfirmed {
		return false
	}
	entry, ok := booking.StatusLogs.Last()
	if !ok || entry.Status != string(models.StatusBookingConfirmed) {
		return false
	}
	if sentFor := booking.Metainfo.ConfirmedEmailsSentFor; sentFor != nil && sentFor.Equal(entry.CreatedAt) {
		return false
	}

	if guest != nil && guest.Email != "" {
		ok = s.dispatch(ctx, booking, models.TaskConfirmedEmail, models.EmailPayload{
			Template:   s.cfg.ConfirmedTemplate,
			Recipients: []string{guest.Email},
			BookingID:  booking.ID,
			Reference:  booking.ReferenceID,
			MergeData:  mergeData(booking, guest, nil),
		}, nil)
		if !ok {
			return false
		}
	}

	if _, err := s.triggers.Fire(ctx, models.TriggerOnConfirmed, booking, guest, nil); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to fire confirmation triggers")
	}

	confirmedAt := entry.CreatedAt
	booking.Metainfo.ConfirmedEmailsSentFor = &confirmedAt
	return true
}

func (s *BookingReconciler) sendAmendmentNotification(ctx context.Context, booking *models.Booking, guest *models.Guest) {
	sent := s.dispatch(ctx, booking, models.TaskAmendmentNotification, models.EmailPayload{
		Template:   s.cfg.AmendmentTemplate,
		Recipients: s.staffRecipients(ctx),
		BookingID:  booking.ID,
		Reference:  booking.ReferenceID,
		MergeData:  mergeData(booking, guest, nil),
	}, nil)
	if sent {
		booking.Metainfo.AmendmentEmailsSent++
	}
}

func (s *BookingReconciler) sendStatusNotification(ctx context.Context, booking *models.Booking) {
	s.dispatch(ctx, booking, models.TaskStatusNotification, models.NotificationPayload{
		BookingID:  booking.ID,
		Reference:  booking.ReferenceID,
		Recipients: s.staffRecipients(ctx),
		Message:    fmt.Sprintf("Booking #%s is now %s", booking.ReferenceID, booking.Status.Label),
		Status:     string(booking.StatusName),
	}, nil)
}

// dispatch queues a task. Failures are logged and reported as false, never returned.
func (s *BookingReconciler) dispatch(ctx context.Context, booking *models.Booking, taskType models.TaskType, payload interface{}, runAt *time.Time) bool {
	task, err := models.NewTask(taskType, payload)
	if err == nil {
		task.RunAt = runAt
		err = s.dispatcher.Dispatch(ctx, task)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"task_type":  taskType,
		}).Error("Failed to dispatch task")
		return false
	}
	return true
}

func (s *BookingReconciler) staffRecipients(ctx context.Context) []string {
	recipients, err := s.recipients.Recipients(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to resolve notification recipients")
		return nil
	}
	return recipients
}

func (s *BookingReconciler) loadGuest(ctx context.Context, booking *models.Booking) *models.Guest {
	guest, err := s.bookings.GetGuest(ctx, booking.GuestID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to load booking guest")
		return nil
	}
	return guest
}

func (s *BookingReconciler) removeFiles(bookingID int64, paths []string) {
	for _, path := range paths {
		if err := s.files.Remove(path); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"booking_id": bookingID,
				"path":       path,
			}).Warn("Failed to remove uploaded file")
		}
	}
}

func (s *BookingReconciler) safeAudit(operation string, err error) {
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Error("Audit log failed")
	}
}
