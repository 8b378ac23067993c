package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BookingType is the guest category a booking was created under
type BookingType string

const (
	BookingTypeEnquiry        BookingType = "Enquiry"
	BookingTypeFirstTimeGuest BookingType = "First-Time Guest"
	BookingTypeReturningGuest BookingType = "Returning Guest"
)

// Booking represents a guest's stay request and its lifecycle record
type Booking struct {
	ID              int64            `json:"id" db:"id"`
	UUID            string           `json:"uuid" db:"uuid"`
	ReferenceID     string           `json:"reference_id" db:"reference_id"`
	GuestID         int64            `json:"guest_id" db:"guest_id"`
	Status          StatusTuple      `json:"status" db:"status"`
	StatusName      BookingStatus    `json:"status_name" db:"status_name"`
	StatusLogs      StatusLog        `json:"status_logs" db:"status_logs"`
	Eligibility     EligibilityTuple `json:"eligibility" db:"eligibility"`
	EligibilityName Eligibility      `json:"eligibility_name" db:"eligibility_name"`
	Complete        bool             `json:"complete" db:"complete"`
	Type            BookingType      `json:"type" db:"type"`
	CourseID        *int64           `json:"course_id,omitempty" db:"course_id"`
	Metainfo        Metainfo         `json:"metainfo" db:"metainfo"`
	DeletedAt       *time.Time       `json:"-" db:"deleted_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// SetStatus moves the booking to a new lifecycle status, keeping the
// denormalized name and the status log in step with the tuple.
func (b *Booking) SetStatus(status BookingStatus, now time.Time) error {
	tuple, err := NewStatusTuple(status)
	if err != nil {
		return err
	}

	b.Status = tuple
	b.StatusName = status
	b.StatusLogs = b.StatusLogs.Append(string(status), now)
	return nil
}

// SetEligibility updates the eligibility axis and its denormalized name
func (b *Booking) SetEligibility(eligibility Eligibility) error {
	tuple, err := NewEligibilityTuple(eligibility)
	if err != nil {
		return err
	}

	b.Eligibility = tuple
	b.EligibilityName = eligibility
	return nil
}

// MarkComplete flips the complete flag. It reports whether this call made the transition.
func (b *Booking) MarkComplete() bool {
	if b.Complete {
		return false
	}
	b.Complete = true
	return true
}

// HasCourse reports whether a course has been selected for the booking
func (b *Booking) HasCourse() bool {
	return b.CourseID != nil && *b.CourseID != 0
}

// Metainfo tracks which one-shot side effects already fired for a booking
type Metainfo struct {
	DefaultNotificationsGenerated bool       `json:"default_notifications_generated,omitempty"`
	SubmitEmailsSent              bool       `json:"submit_emails_sent,omitempty"`
	ConfirmedEmailsSentFor        *time.Time `json:"confirmed_emails_sent_for,omitempty"`
	AmendmentEmailsSent           int        `json:"amendment_emails_sent,omitempty"`
	LastExportQueuedAt            *time.Time `json:"last_export_queued_at,omitempty"`

	// Extra holds keys written by other parts of the application; they are kept as is
	Extra map[string]json.RawMessage `json:"-"`
}

var metainfoKeys = []string{
	"default_notifications_generated",
	"submit_emails_sent",
	"confirmed_emails_sent_for",
	"amendment_emails_sent",
	"last_export_queued_at",
}

// metainfoFields is Metainfo without its JSON methods
type metainfoFields Metainfo

// MarshalJSON writes the known markers followed by any preserved keys
func (m Metainfo) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(metainfoFields(m))
	if err != nil || len(m.Extra) == 0 {
		return known, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known markers and keeps every other key in Extra
func (m *Metainfo) UnmarshalJSON(data []byte) error {
	var fields metainfoFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range metainfoKeys {
		delete(all, k)
	}

	*m = Metainfo(fields)
	m.Extra = nil
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

// Value implements the driver.Valuer interface
func (m Metainfo) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (m *Metainfo) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("metainfo: %w", err)
	}
	*m = Metainfo{}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, m)
}

// jsonBytes normalizes the source value of a JSON/JSONB column
func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type")
	}
}

// StatusChangeRequest represents POST /bookings/:id/status.
// Exactly one of Status and Eligibility must be set.
type StatusChangeRequest struct {
	Status      *StatusTuple      `json:"status,omitempty"`
	Eligibility *EligibilityTuple `json:"eligibility,omitempty"`
}

// Validate validates the status change request
func (r *StatusChangeRequest) Validate() error {
	if r.Status == nil && r.Eligibility == nil {
		return errors.New("either status or eligibility is required")
	}
	if r.Status != nil && r.Eligibility != nil {
		return errors.New("status and eligibility cannot be changed in the same request")
	}
	return nil
}
