package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogType discriminates the payload of a Log row
type LogType string

const (
	LogTypeQaPair    LogType = "qa_pair"
	LogTypeEquipment LogType = "equipment"
)

// LoggableBooking is the loggable_type of logs attached to bookings
const LoggableBooking = "booking"

// Log is the shared envelope of an amendment log row
type Log struct {
	ID           int64     `json:"id"`
	LoggableType string    `json:"loggable_type"`
	LoggableID   int64     `json:"loggable_id"`
	Type         LogType   `json:"type"`
	Data         LogData   `json:"data"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Approved reports the approval flag of the payload
func (l *Log) Approved() bool {
	return l.Data.Review().Approved
}

// LogData is implemented by every log payload kind
type LogData interface {
	Kind() LogType
	Review() *Approval
	Key() QuestionKey
	Question() string
}

// Approval holds the review state shared by all log kinds
type Approval struct {
	Approved     bool       `json:"approved"`
	ApprovedBy   *string    `json:"approved_by"`
	ApprovalDate *time.Time `json:"approval_date"`
	Note         string     `json:"note,omitempty"`
	ModifiedBy   string     `json:"modifiedBy"`
	ModifiedDate time.Time  `json:"modifiedDate"`
}

// Approve stamps the approval
func (a *Approval) Approve(by string, at time.Time) {
	a.Approved = true
	a.ApprovedBy = &by
	a.ApprovalDate = &at
}

// Adopt takes over the approval stamp of another review
func (a *Approval) Adopt(other *Approval) {
	a.Approved = other.Approved
	a.ApprovedBy = other.ApprovedBy
	a.ApprovalDate = other.ApprovalDate
}

// QaPairSnapshot is the before/after state of one QaPair
type QaPairSnapshot struct {
	ID           *int64          `json:"id,omitempty"`
	SectionID    int64           `json:"section_id"`
	Question     string          `json:"question"`
	Answer       json.RawMessage `json:"answer"`
	OldAnswer    json.RawMessage `json:"oldAnswer"`
	QuestionType QuestionType    `json:"question_type"`
}

// QaPairLogData records an amendment to a question's answer
type QaPairLogData struct {
	Approval
	QaPair QaPairSnapshot `json:"qa_pair"`
}

func (d *QaPairLogData) Kind() LogType { return LogTypeQaPair }
func (d *QaPairLogData) Review() *Approval { return &d.Approval }
func (d *QaPairLogData) Question() string { return d.QaPair.Question }

// Key returns the identity the entry was recorded under
func (d *QaPairLogData) Key() QuestionKey {
	if d.QaPair.ID != nil && *d.QaPair.ID != 0 {
		return ByID(*d.QaPair.ID)
	}
	return ByQuestionText(d.QaPair.Question, d.QaPair.QuestionType)
}

// Merge folds a newer pending edit into this one. The original previous
// answer is kept so a revert goes back to the value before the first edit.
func (d *QaPairLogData) Merge(newer *QaPairLogData) {
	d.QaPair.Answer = newer.QaPair.Answer
	if d.QaPair.ID == nil {
		d.QaPair.ID = newer.QaPair.ID
	}
	d.ModifiedBy = newer.ModifiedBy
	d.ModifiedDate = newer.ModifiedDate
}

// NewQaPairLogData builds the payload for a dirty change
func NewQaPairLogData(change Change, modifiedBy string, now time.Time) *QaPairLogData {
	return &QaPairLogData{
		Approval: Approval{ModifiedBy: modifiedBy, ModifiedDate: now},
		QaPair: QaPairSnapshot{
			ID:           change.ID,
			SectionID:    change.SectionID,
			Question:     change.Question,
			Answer:       change.Answer,
			OldAnswer:    change.OldAnswer,
			QuestionType: change.QuestionType,
		},
	}
}

// EquipmentSnapshot is the before/after equipment selection for a question
type EquipmentSnapshot struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	OldID    *int64 `json:"oldId,omitempty"`
	OldName  string `json:"oldName,omitempty"`
	Question string `json:"question"`
}

// EquipmentLogData records an amendment to the equipment linked to a booking
type EquipmentLogData struct {
	Approval
	Equipment EquipmentSnapshot `json:"equipment"`
}

func (d *EquipmentLogData) Kind() LogType { return LogTypeEquipment }
func (d *EquipmentLogData) Review() *Approval { return &d.Approval }
func (d *EquipmentLogData) Question() string { return d.Equipment.Question }

func (d *EquipmentLogData) Key() QuestionKey {
	return ByQuestionText(d.Equipment.Question, QuestionTypeEquipment)
}

// Merge folds a newer pending equipment swap into this one
func (d *EquipmentLogData) Merge(newer *EquipmentLogData) {
	d.Equipment.ID = newer.Equipment.ID
	d.Equipment.Name = newer.Equipment.Name
	d.ModifiedBy = newer.ModifiedBy
	d.ModifiedDate = newer.ModifiedDate
}

// NewEquipmentLogData builds the payload for a dirty equipment change
func NewEquipmentLogData(change EquipmentChange, modifiedBy string, now time.Time) *EquipmentLogData {
	return &EquipmentLogData{
		Approval: Approval{ModifiedBy: modifiedBy, ModifiedDate: now},
		Equipment: EquipmentSnapshot{
			ID:       change.EquipmentID,
			Name:     change.EquipmentName,
			OldID:    change.OldID,
			OldName:  change.OldName,
			Question: change.Question,
		},
	}
}

// DecodeLogData decodes a stored payload according to its log type
func DecodeLogData(logType LogType, raw []byte) (LogData, error) {
	var data LogData
	switch logType {
	case LogTypeQaPair:
		data = &QaPairLogData{}
	case LogTypeEquipment:
		data = &EquipmentLogData{}
	default:
		return nil, fmt.Errorf("unknown log type %q", logType)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to decode %s log data: %w", logType, err)
	}
	return data, nil
}

// LogRow is the database form of a Log
type LogRow struct {
	ID           int64     `db:"id"`
	LoggableType string    `db:"loggable_type"`
	LoggableID   int64     `db:"loggable_id"`
	Type         LogType   `db:"type"`
	Approved     bool      `db:"approved"`
	Data         []byte    `db:"data"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ToLog decodes the row into a Log
func (r LogRow) ToLog() (*Log, error) {
	data, err := DecodeLogData(r.Type, r.Data)
	if err != nil {
		return nil, err
	}
	return &Log{
		ID:           r.ID,
		LoggableType: r.LoggableType,
		LoggableID:   r.LoggableID,
		Type:         r.Type,
		Data:         data,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

// ReviewAmendmentRequest represents POST /amendments/:id
type ReviewAmendmentRequest struct {
	Approved     *bool      `json:"approved" binding:"required"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`
	Note         string     `json:"note,omitempty"`
}
