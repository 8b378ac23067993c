package database

import (
	"context"
	"fmt"
	"time"

	"github.com/staycare/booking-backend/internal/models"
)

// ScheduledTaskRepository stores deferred tasks until they are due
type ScheduledTaskRepository struct {
	db DB
}

// NewScheduledTaskRepository creates a new ScheduledTaskRepository
func NewScheduledTaskRepository(db DB) *ScheduledTaskRepository {
	return &ScheduledTaskRepository{db: db}
}

// Create stores a task to be dispatched at runAt
func (r *ScheduledTaskRepository) Create(ctx context.Context, task models.Task, runAt time.Time) (*models.ScheduledTask, error) {
	scheduled := &models.ScheduledTask{
		TaskType: task.Type,
		Payload:  task.Payload,
		RunAt:    runAt,
	}

	query := `
		INSERT INTO scheduled_tasks (task_type, payload, run_at, attempts, created_at)
		VALUES ($1, $2, $3, 0, NOW())
		RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, scheduled.TaskType, []byte(scheduled.Payload), runAt).
		Scan(&scheduled.ID, &scheduled.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule task: %w", err)
	}
	return scheduled, nil
}

// ListDue returns undispatched tasks whose run time has passed and which
// have not exhausted their attempts, oldest first
func (r *ScheduledTaskRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.ScheduledTask, error) {
	tasks := []models.ScheduledTask{}
	query := `
		SELECT id, task_type, payload, run_at, dispatched_at, attempts, last_error, created_at
		FROM scheduled_tasks
		WHERE dispatched_at IS NULL AND run_at <= $1 AND attempts < $2
		ORDER BY run_at, id
		LIMIT $3`
	if err := r.db.SelectContext(ctx, &tasks, query, now, maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	return tasks, nil
}

// MarkDispatched records a successful hand-off to the queue
func (r *ScheduledTaskRepository) MarkDispatched(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE scheduled_tasks
		SET dispatched_at = $1, attempts = attempts + 1, last_error = NULL
		WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to mark task %d dispatched: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed dispatch attempt
func (r *ScheduledTaskRepository) MarkFailed(ctx context.Context, id int64, cause error) error {
	query := `
		UPDATE scheduled_tasks
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, cause.Error(), id); err != nil {
		return fmt.Errorf("failed to mark task %d failed: %w", id, err)
	}
	return nil
}

// PurgeDispatched deletes dispatched tasks older than before
func (r *ScheduledTaskRepository) PurgeDispatched(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE dispatched_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dispatched tasks: %w", err)
	}
	return result.RowsAffected()
}
