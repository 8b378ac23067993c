package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/config"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/queue"
	"github.com/staycare/booking-backend/internal/services"
)

// relay-tasks publishes due deferred tasks once, outside the server's cron loop.
func main() {
	purgeDays := flag.Int("purge-days", 0, "also delete tasks dispatched more than N days ago (0 disables)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Queue.Mode == config.QueueModeRedis {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	publisher, err := queue.NewPublisher(cfg.Queue, rdb, logger)
	if err != nil {
		logger.Fatalf("Failed to create task publisher: %v", err)
	}
	defer publisher.Close()

	scheduled := database.NewScheduledTaskRepository(db)
	dispatcher := services.NewNotificationDispatcher(publisher, scheduled, cfg.Queue.TopicPrefix, logger)
	relay := services.NewTaskRelayService(scheduled, dispatcher, cfg.Queue.RelayBatchSize, cfg.Queue.MaxRelayAttempt, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	total := 0
	for {
		relayed, err := relay.RelayDue(ctx)
		if err != nil {
			logger.Fatalf("Failed to relay tasks: %v", err)
		}
		total += relayed
		if relayed < cfg.Queue.RelayBatchSize {
			break
		}
	}
	logger.WithField("relayed", total).Info("Relay finished")

	if *purgeDays > 0 {
		purged, err := scheduled.PurgeDispatched(ctx, time.Now().AddDate(0, 0, -*purgeDays))
		if err != nil {
			logger.Fatalf("Failed to purge tasks: %v", err)
		}
		logger.WithField("purged", purged).Info("Purge finished")
	}
}
