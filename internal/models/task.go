package models

import (
	"encoding/json"
	"time"
)

// TaskType names a job handed to the task queue
type TaskType string

const (
	TaskAmendmentNotification TaskType = "email.amendment_notification"
	TaskSubmitEmail           TaskType = "email.on_submit"
	TaskConfirmedEmail        TaskType = "email.on_confirmed"
	TaskTriggerEmail          TaskType = "email.trigger"
	TaskStatusNotification    TaskType = "notification.status_change"
	TaskDefaultNotifications  TaskType = "notification.defaults"
	TaskExportBookingPDF      TaskType = "export.booking_pdf"
)

// Task is a unit of work for the external queue. A RunAt in the future defers dispatch.
type Task struct {
	Type    TaskType        `json:"type"`
	Payload json.RawMessage `json:"payload"`
	RunAt   *time.Time      `json:"run_at,omitempty"`
}

// NewTask marshals payload into a task
func NewTask(taskType TaskType, payload interface{}) (Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{Type: taskType, Payload: b}, nil
}

// IsDeferred reports whether the task should wait until RunAt
func (t Task) IsDeferred(now time.Time) bool {
	return t.RunAt != nil && t.RunAt.After(now)
}

// EmailPayload is the payload of email tasks: template name plus merge data
type EmailPayload struct {
	Template   string                 `json:"template"`
	Recipients []string               `json:"recipients"`
	BookingID  int64                  `json:"booking_id"`
	Reference  string                 `json:"reference_id"`
	MergeData  map[string]interface{} `json:"merge_data,omitempty"`
}

// NotificationPayload is the payload of in-app/staff notification tasks
type NotificationPayload struct {
	BookingID  int64    `json:"booking_id"`
	Reference  string   `json:"reference_id"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	Status     string   `json:"status,omitempty"`
}

// ExportPayload is the payload of the PDF export task
type ExportPayload struct {
	BookingID int64  `json:"booking_id"`
	UUID      string `json:"uuid"`
}

// ScheduledTask is a deferred task waiting in the database for its run time
type ScheduledTask struct {
	ID           int64           `json:"id" db:"id"`
	TaskType     TaskType        `json:"task_type" db:"task_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	RunAt        time.Time       `json:"run_at" db:"run_at"`
	DispatchedAt *time.Time      `json:"dispatched_at,omitempty" db:"dispatched_at"`
	Attempts     int             `json:"attempts" db:"attempts"`
	LastError    *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
