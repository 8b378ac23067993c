package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StatusLogEntry is one entry of a booking's status history
type StatusLogEntry struct {
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// StatusLog is the ordered status history stored on a booking
type StatusLog []StatusLogEntry

// Append records status at now. Repeating the current last status refreshes
// that entry's updated_at instead of adding a new entry. The receiver is not
// modified.
func (l StatusLog) Append(status string, now time.Time) StatusLog {
	out := make(StatusLog, len(l), len(l)+1)
	copy(out, l)

	if n := len(out); n > 0 && out[n-1].Status == status {
		updated := now
		out[n-1].UpdatedAt = &updated
		return out
	}

	return append(out, StatusLogEntry{Status: status, CreatedAt: now})
}

// Last returns the most recent entry
func (l StatusLog) Last() (StatusLogEntry, bool) {
	if len(l) == 0 {
		return StatusLogEntry{}, false
	}
	return l[len(l)-1], true
}

// Value implements the driver.Valuer interface
func (l StatusLog) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (l *StatusLog) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("status_logs: %w", err)
	}
	*l = StatusLog{}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, l)
}
