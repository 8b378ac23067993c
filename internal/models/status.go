package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BookingStatus represents the main lifecycle axis of a booking
type BookingStatus string

const (
	StatusEnquiry          BookingStatus = "enquiry"
	StatusPendingApproval  BookingStatus = "pending_approval"
	StatusReadyToProcess   BookingStatus = "ready_to_process"
	StatusBookingAmended   BookingStatus = "booking_amended"
	StatusOnHold           BookingStatus = "on_hold"
	StatusInProgress       BookingStatus = "in_progress"
	StatusBookingConfirmed BookingStatus = "booking_confirmed"
	StatusBookingCancelled BookingStatus = "booking_cancelled"
	StatusGuestCancelled   BookingStatus = "guest_cancelled"
)

// Eligibility represents the eligibility axis, independent of BookingStatus
type Eligibility string

const (
	EligibilityPending    Eligibility = "pending_eligibility"
	EligibilityEligible   Eligibility = "eligible"
	EligibilityIneligible Eligibility = "ineligible"
)

type statusMeta struct {
	Label string
	Color string
}

var bookingStatuses = map[BookingStatus]statusMeta{
	StatusEnquiry:          {Label: "Enquiry", Color: "gray"},
	StatusPendingApproval:  {Label: "Pending Approval", Color: "amber"},
	StatusReadyToProcess:   {Label: "Ready to Process", Color: "sky"},
	StatusBookingAmended:   {Label: "Booking Amended", Color: "purple"},
	StatusOnHold:           {Label: "On Hold", Color: "orange"},
	StatusInProgress:       {Label: "In Progress", Color: "blue"},
	StatusBookingConfirmed: {Label: "Booking Confirmed", Color: "green"},
	StatusBookingCancelled: {Label: "Booking Cancelled", Color: "red"},
	StatusGuestCancelled:   {Label: "Guest Cancelled", Color: "red"},
}

var eligibilities = map[Eligibility]statusMeta{
	EligibilityPending:    {Label: "Pending Eligibility", Color: "amber"},
	EligibilityEligible:   {Label: "Eligible", Color: "green"},
	EligibilityIneligible: {Label: "Ineligible", Color: "red"},
}

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	_, ok := bookingStatuses[s]
	return ok
}

// IsValid reports whether e is a known eligibility value
func (e Eligibility) IsValid() bool {
	_, ok := eligibilities[e]
	return ok
}

// StatusTuple is the {name, label, color} wire and storage form of a BookingStatus
type StatusTuple struct {
	Name  BookingStatus `json:"name"`
	Label string        `json:"label"`
	Color string        `json:"color"`
}

// NewStatusTuple builds the tuple for a status from the lookup table
func NewStatusTuple(status BookingStatus) (StatusTuple, error) {
	meta, ok := bookingStatuses[status]
	if !ok {
		return StatusTuple{}, fmt.Errorf("unknown booking status %q", status)
	}
	return StatusTuple{Name: status, Label: meta.Label, Color: meta.Color}, nil
}

// Value implements the driver.Valuer interface
func (t StatusTuple) Value() (driver.Value, error) {
	return marshalTuple(t)
}

// Scan implements the sql.Scanner interface
func (t *StatusTuple) Scan(src interface{}) error {
	var raw StatusTuple
	if err := scanTuple(src, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if raw.Name == "" {
		*t = StatusTuple{}
		return nil
	}
	tuple, err := NewStatusTuple(raw.Name)
	if err != nil {
		return err
	}
	*t = tuple
	return nil
}

// EligibilityTuple is the {name, label, color} form of an Eligibility
type EligibilityTuple struct {
	Name  Eligibility `json:"name"`
	Label string      `json:"label"`
	Color string      `json:"color"`
}

// NewEligibilityTuple builds the tuple for an eligibility value
func NewEligibilityTuple(eligibility Eligibility) (EligibilityTuple, error) {
	meta, ok := eligibilities[eligibility]
	if !ok {
		return EligibilityTuple{}, fmt.Errorf("unknown eligibility %q", eligibility)
	}
	return EligibilityTuple{Name: eligibility, Label: meta.Label, Color: meta.Color}, nil
}

// Value implements the driver.Valuer interface
func (t EligibilityTuple) Value() (driver.Value, error) {
	return marshalTuple(t)
}

// Scan implements the sql.Scanner interface
func (t *EligibilityTuple) Scan(src interface{}) error {
	var raw EligibilityTuple
	if err := scanTuple(src, &raw); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	if raw.Name == "" {
		*t = EligibilityTuple{}
		return nil
	}
	tuple, err := NewEligibilityTuple(raw.Name)
	if err != nil {
		return err
	}
	*t = tuple
	return nil
}

func marshalTuple(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanTuple(src interface{}, dest interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
