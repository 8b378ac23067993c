package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// auditRetention is how long audit entries are kept
const auditRetention = 365 * 24 * time.Hour

// TaskPurger removes dispatched scheduled tasks
type TaskPurger interface {
	PurgeDispatched(ctx context.Context, before time.Time) (int64, error)
}

// AuditCleaner removes old audit entries
type AuditCleaner interface {
	CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron          *cron.Cron
	relay         *TaskRelayService
	purger        TaskPurger
	audit         AuditCleaner
	relaySchedule string
	logger        *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(relay *TaskRelayService, purger TaskPurger, audit AuditCleaner, relaySchedule string, logger *logrus.Logger) *CronService {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:          c,
		relay:         relay,
		purger:        purger,
		audit:         audit,
		relaySchedule: relaySchedule,
		logger:        logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Job 1: relay due deferred tasks (every minute by default)
	if _, err := s.cron.AddFunc(s.relaySchedule, s.relayScheduledTasksJob); err != nil {
		return fmt.Errorf("failed to schedule task relay job: %w", err)
	}
	s.logger.WithField("schedule", s.relaySchedule).Info("Scheduled: relay deferred tasks")

	// Job 2: purge dispatched tasks daily at 3 AM
	// "0 0 3 * * *" = At 3:00 AM every day
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.purgeDispatchedTasksJob); err != nil {
		return fmt.Errorf("failed to schedule purge job: %w", err)
	}
	s.logger.Info("Scheduled: purge dispatched tasks (Daily at 3:00 AM)")

	// Job 3: cleanup old audit logs weekly on Sunday at 4 AM
	if _, err := s.cron.AddFunc("0 0 4 * * 0", s.cleanupAuditLogsJob); err != nil {
		return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
	}
	s.logger.Info("Scheduled: cleanup audit logs (Sundays at 4:00 AM)")

	s.cron.Start()
	s.logger.Info("Cron service started successfully")

	return nil
}

// Stop stops all cron jobs and waits for running ones
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// RunRelayNow runs the relay job immediately
func (s *CronService) RunRelayNow() {
	s.relayScheduledTasksJob()
}

func (s *CronService) relayScheduledTasksJob() {
	startTime := time.Now()

	relayed, err := s.relay.RelayDue(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to relay scheduled tasks")
		return
	}
	if relayed > 0 {
		s.logger.WithFields(logrus.Fields{
			"relayed":  relayed,
			"duration": time.Since(startTime).String(),
		}).Info("[CRON] Relayed scheduled tasks")
	}
}

func (s *CronService) purgeDispatchedTasksJob() {
	purged, err := s.purger.PurgeDispatched(context.Background(), time.Now().AddDate(0, 0, -30))
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to purge dispatched tasks")
		return
	}
	s.logger.WithField("purged", purged).Info("[CRON] Purged dispatched tasks")
}

func (s *CronService) cleanupAuditLogsJob() {
	removed, err := s.audit.CleanupOldAuditLogs(context.Background(), auditRetention)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup audit logs")
		return
	}
	s.logger.WithField("removed", removed).Info("[CRON] Cleaned up audit logs")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
