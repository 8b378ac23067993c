package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/models"
)

// TaskPublisher publishes a task to the queue without deferral
type TaskPublisher interface {
	Publish(ctx context.Context, task models.Task) error
}

// TaskRelayService moves due deferred tasks from scheduled_tasks to the queue
type TaskRelayService struct {
	scheduled   ScheduledTaskStore
	publisher   TaskPublisher
	batchSize   int
	maxAttempts int
	logger      *logrus.Logger
	now         func() time.Time
}

// NewTaskRelayService creates a new TaskRelayService
func NewTaskRelayService(scheduled ScheduledTaskStore, publisher TaskPublisher, batchSize, maxAttempts int, logger *logrus.Logger) *TaskRelayService {
	return &TaskRelayService{
		scheduled:   scheduled,
		publisher:   publisher,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// RelayDue publishes one batch of due tasks and returns how many were handed off
func (s *TaskRelayService) RelayDue(ctx context.Context) (int, error) {
	due, err := s.scheduled.ListDue(ctx, s.now(), s.maxAttempts, s.batchSize)
	if err != nil {
		return 0, err
	}

	relayed := 0
	for _, scheduled := range due {
		task := models.Task{Type: scheduled.TaskType, Payload: scheduled.Payload}
		logger := s.logger.WithFields(logrus.Fields{
			"scheduled_task_id": scheduled.ID,
			"task_type":         scheduled.TaskType,
			"attempt":           scheduled.Attempts + 1,
		})

		if err := s.publisher.Publish(ctx, task); err != nil {
			logger.WithError(err).Warn("Failed to relay scheduled task")
			if markErr := s.scheduled.MarkFailed(ctx, scheduled.ID, err); markErr != nil {
				logger.WithError(markErr).Error("Failed to record relay failure")
			}
			continue
		}

		if err := s.scheduled.MarkDispatched(ctx, scheduled.ID, s.now()); err != nil {
			// a later run may relay the task again
			logger.WithError(err).Error("Failed to mark scheduled task dispatched")
			continue
		}
		relayed++
	}

	return relayed, nil
}
