package queue

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/config"
)

// MetadataTaskType is the message metadata key carrying the task type
const MetadataTaskType = "task_type"

// NewPublisher builds the task publisher for the configured queue mode.
// The redis client may be nil in log mode.
func NewPublisher(cfg config.QueueConfig, rdb *redis.Client, logger *logrus.Logger) (message.Publisher, error) {
	watermillLogger := NewLogrusAdapter(logger)

	switch cfg.Mode {
	case config.QueueModeRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis client is required in %s mode", cfg.Mode)
		}
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: rdb,
		}, watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
		}
		return publisher, nil
	case config.QueueModeLog:
		return &LogPublisher{logger: watermillLogger}, nil
	default:
		return nil, fmt.Errorf("unknown queue mode %q", cfg.Mode)
	}
}

// LogPublisher logs messages instead of delivering them. Used for local development.
type LogPublisher struct {
	logger watermill.LoggerAdapter
}

func (p *LogPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		p.logger.Info("Task published", watermill.LogFields{
			"topic":      topic,
			"message_id": msg.UUID,
			"task_type":  msg.Metadata.Get(MetadataTaskType),
			"payload":    string(msg.Payload),
		})
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
