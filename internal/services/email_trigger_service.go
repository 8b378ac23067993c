package services

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/models"
)

// EmailTriggerService fires configured email rules for booking events
type EmailTriggerService struct {
	triggers   TriggerStore
	recipients RecipientsSource
	dispatcher Dispatcher
	logger     *logrus.Logger
}

// NewEmailTriggerService creates a new EmailTriggerService
func NewEmailTriggerService(triggers TriggerStore, recipients RecipientsSource, dispatcher Dispatcher, logger *logrus.Logger) *EmailTriggerService {
	return &EmailTriggerService{
		triggers:   triggers,
		recipients: recipients,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Fire dispatches an email task for every enabled rule of event that matches
// one of questions. A nil questions slice matches every rule. Failures of
// single rules are logged and skipped. It returns the number of queued emails.
func (s *EmailTriggerService) Fire(ctx context.Context, event models.TriggerEvent, booking *models.Booking, guest *models.Guest, questions []string) (int, error) {
	rules, err := s.triggers.ListByEvent(ctx, event)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s triggers: %w", event, err)
	}

	fired := 0
	for _, rule := range rules {
		if !ruleMatches(rule, questions) {
			continue
		}

		to, err := s.resolveRecipients(ctx, rule, guest)
		if err != nil {
			s.logger.WithError(err).WithField("trigger_id", rule.ID).Warn("Failed to resolve trigger recipients")
			continue
		}
		if len(to) == 0 {
			continue
		}

		task, err := models.NewTask(models.TaskTriggerEmail, models.EmailPayload{
			Template:   rule.Template,
			Recipients: to,
			BookingID:  booking.ID,
			Reference:  booking.ReferenceID,
			MergeData:  mergeData(booking, guest, map[string]interface{}{"trigger": rule.Name}),
		})
		if err == nil {
			err = s.dispatcher.Dispatch(ctx, task)
		}
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"trigger_id": rule.ID,
				"booking_id": booking.ID,
			}).Error("Failed to dispatch trigger email")
			continue
		}
		fired++
	}
	return fired, nil
}

func (s *EmailTriggerService) resolveRecipients(ctx context.Context, rule models.EmailTrigger, guest *models.Guest) ([]string, error) {
	switch rule.Recipient {
	case models.RecipientGuest:
		if guest == nil || guest.Email == "" {
			return nil, nil
		}
		return []string{guest.Email}, nil
	case models.RecipientStaff:
		return s.recipients.Recipients(ctx)
	default:
		return []string{rule.Recipient}, nil
	}
}

func ruleMatches(rule models.EmailTrigger, questions []string) bool {
	if questions == nil {
		return rule.Enabled
	}
	return lo.SomeBy(questions, rule.Matches)
}

// mergeData builds the template variables shared by booking emails
func mergeData(booking *models.Booking, guest *models.Guest, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"booking_id":   booking.ID,
		"uuid":         booking.UUID,
		"reference_id": booking.ReferenceID,
		"status":       booking.Status.Label,
	}
	if guest != nil {
		data["guest_name"] = guest.Name
		data["guest_email"] = guest.Email
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
