package models

import "time"

// TriggerEvent names the booking event an email rule reacts to
type TriggerEvent string

const (
	TriggerOnSubmit            TriggerEvent = "on_submit"
	TriggerOnConfirmed         TriggerEvent = "on_confirmed"
	TriggerOnAmendmentApproved TriggerEvent = "on_amendment_approved"
)

// Recipient keywords of an email trigger; anything else is used as an address
const (
	RecipientGuest = "guest"
	RecipientStaff = "staff"
)

// EmailTrigger is a configured email rule. An empty question set matches every question.
type EmailTrigger struct {
	ID        int64        `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Template  string       `json:"template" db:"template"`
	Recipient string       `json:"recipient" db:"recipient"`
	TriggerOn TriggerEvent `json:"trigger_on" db:"trigger_on"`
	Questions QuestionSet  `json:"questions" db:"questions"`
	Enabled   bool         `json:"enabled" db:"enabled"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// Matches reports whether the rule fires for the given question
func (t EmailTrigger) Matches(question string) bool {
	if !t.Enabled {
		return false
	}
	if len(t.Questions) == 0 {
		return true
	}
	return t.Questions.Contains(question)
}
