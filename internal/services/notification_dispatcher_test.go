package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("stream closed") }
func (failingPublisher) Close() error { return nil }

func TestNotificationDispatcher_PublishesDueTasks(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "booking-tasks.email.on_submit")
	require.NoError(t, err)

	scheduled := newFakeScheduledStore()
	dispatcher := NewNotificationDispatcher(pubSub, scheduled, "booking-tasks", testLogger())

	task, err := models.NewTask(models.TaskSubmitEmail, models.EmailPayload{Template: "booking-submitted", BookingID: 1})
	require.NoError(t, err)
	require.NoError(t, dispatcher.Dispatch(ctx, task))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(models.TaskSubmitEmail), msg.Metadata.Get(queue.MetadataTaskType))
		assert.JSONEq(t, string(task.Payload), string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("task was not published")
	}
	assert.Empty(t, scheduled.tasks)
}

func TestNotificationDispatcher_DefersFutureTasks(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	scheduled := newFakeScheduledStore()
	dispatcher := NewNotificationDispatcher(failingPublisher{}, scheduled, "booking-tasks", testLogger())
	dispatcher.now = func() time.Time { return now }

	task, err := models.NewTask(models.TaskDefaultNotifications, models.NotificationPayload{BookingID: 1})
	require.NoError(t, err)
	runAt := now.Add(72 * time.Hour)
	task.RunAt = &runAt

	require.NoError(t, dispatcher.Dispatch(context.Background(), task))
	require.Len(t, scheduled.tasks, 1)
	assert.Equal(t, runAt, scheduled.tasks[1].RunAt)
	assert.Equal(t, models.TaskDefaultNotifications, scheduled.tasks[1].TaskType)

	past := now.Add(-time.Minute)
	task.RunAt = &past
	err = dispatcher.Dispatch(context.Background(), task)
	assert.ErrorContains(t, err, "stream closed")
	assert.Len(t, scheduled.tasks, 1)
}

func TestNotificationDispatcher_Topic(t *testing.T) {
	dispatcher := NewNotificationDispatcher(failingPublisher{}, newFakeScheduledStore(), "staging-tasks", testLogger())
	assert.Equal(t, "staging-tasks.export.booking_pdf", dispatcher.Topic(models.TaskExportBookingPDF))
}
