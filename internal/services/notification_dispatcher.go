package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/metrics"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/internal/queue"
)

// NotificationDispatcher is the boundary to the external task queue. Due
// tasks are published right away, deferred ones wait in scheduled_tasks.
type NotificationDispatcher struct {
	publisher   message.Publisher
	scheduled   ScheduledTaskStore
	topicPrefix string
	logger      *logrus.Logger
	now         func() time.Time
}

// NewNotificationDispatcher creates a new dispatcher
func NewNotificationDispatcher(publisher message.Publisher, scheduled ScheduledTaskStore, topicPrefix string, logger *logrus.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		publisher:   publisher,
		scheduled:   scheduled,
		topicPrefix: topicPrefix,
		logger:      logger,
		now:         time.Now,
	}
}

// Topic returns the queue topic of a task type
func (d *NotificationDispatcher) Topic(taskType models.TaskType) string {
	return d.topicPrefix + "." + string(taskType)
}

// Dispatch publishes the task now or stores it until its RunAt
func (d *NotificationDispatcher) Dispatch(ctx context.Context, task models.Task) error {
	if task.IsDeferred(d.now()) {
		scheduled, err := d.scheduled.Create(ctx, task, *task.RunAt)
		if err != nil {
			metrics.TaskDispatchFailures.WithLabelValues(string(task.Type)).Inc()
			return fmt.Errorf("failed to defer %s task: %w", task.Type, err)
		}

		metrics.TasksDispatched.WithLabelValues(string(task.Type), "deferred").Inc()
		d.logger.WithFields(logrus.Fields{
			"task_type":         task.Type,
			"scheduled_task_id": scheduled.ID,
			"run_at":            scheduled.RunAt,
		}).Debug("Task deferred")
		return nil
	}

	return d.Publish(ctx, task)
}

// Publish hands the task to the queue immediately
func (d *NotificationDispatcher) Publish(ctx context.Context, task models.Task) error {
	msg := message.NewMessage(watermill.NewUUID(), message.Payload(task.Payload))
	msg.Metadata.Set(queue.MetadataTaskType, string(task.Type))
	msg.SetContext(ctx)

	if err := d.publisher.Publish(d.Topic(task.Type), msg); err != nil {
		metrics.TaskDispatchFailures.WithLabelValues(string(task.Type)).Inc()
		return fmt.Errorf("failed to publish %s task: %w", task.Type, err)
	}

	metrics.TasksDispatched.WithLabelValues(string(task.Type), "immediate").Inc()
	return nil
}
