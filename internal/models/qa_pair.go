package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// QuestionType is the input kind of a questionnaire question
type QuestionType string

const (
	QuestionTypeText             QuestionType = "text"
	QuestionTypeTextarea         QuestionType = "textarea"
	QuestionTypeDate             QuestionType = "date"
	QuestionTypeDateRange        QuestionType = "date-range"
	QuestionTypeRadio            QuestionType = "radio"
	QuestionTypeSelect           QuestionType = "select"
	QuestionTypeCheckbox         QuestionType = "checkbox"
	QuestionTypeFileUpload       QuestionType = "file-upload"
	QuestionTypeEquipment        QuestionType = "equipment"
	QuestionTypePackageSelection QuestionType = "package-selection"
)

// Section groups the question/answer pairs of one questionnaire page
type Section struct {
	ID                int64     `json:"id" db:"id"`
	BookingID         int64     `json:"booking_id" db:"booking_id"`
	TemplateSectionID int64     `json:"template_section_id" db:"template_section_id"`
	Label             string    `json:"label" db:"label"`
	QaPairs           []QaPair  `json:"qa_pairs" db:"-"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// QaPair is one answered question within a section. (Question, SectionID) is unique.
type QaPair struct {
	ID           int64        `json:"id" db:"id"`
	SectionID    int64        `json:"section_id" db:"section_id"`
	Question     string       `json:"question" db:"question"`
	Answer       string       `json:"answer" db:"answer"`
	QuestionType QuestionType `json:"question_type" db:"question_type"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Change is one submitted question/answer edit.
// Answer and OldAnswer keep the value's native JSON type.
type Change struct {
	ID           *int64          `json:"id,omitempty"`
	SectionID    int64           `json:"section_id" binding:"required"`
	Question     string          `json:"question" binding:"required"`
	Answer       json.RawMessage `json:"answer"`
	OldAnswer    json.RawMessage `json:"oldAnswer,omitempty"`
	QuestionType QuestionType    `json:"question_type"`
	Dirty        bool            `json:"dirty,omitempty"`
	Delete       bool            `json:"delete,omitempty"`
	Submit       bool            `json:"submit,omitempty"`
}

// IsEquipment reports whether the change belongs to the equipment path
func (c Change) IsEquipment() bool {
	return c.QuestionType == QuestionTypeEquipment
}

// IsDirty reports whether the change carries the dirty flag and its answer
// actually differs from the previous one.
func (c Change) IsDirty() bool {
	if !c.Dirty {
		return false
	}
	return NormalizeAnswer(c.Answer) != NormalizeAnswer(c.OldAnswer)
}

// AnswerString is the stored string form of the new answer
func (c Change) AnswerString() string {
	return NormalizeAnswer(c.Answer)
}

// Key resolves the identity used to match the change against amendment logs
func (c Change) Key() QuestionKey {
	if c.ID != nil && *c.ID != 0 {
		return ByID(*c.ID)
	}
	return ByQuestionText(c.Question, c.QuestionType)
}

// NormalizeAnswer converts a raw JSON answer into its stored string form.
// JSON strings become their value; arrays, objects, numbers and booleans
// become compact JSON. Values that are not valid JSON are kept verbatim.
func NormalizeAnswer(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var s string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return string(trimmed)
	}

	// Numbers stay json.Number so large integers keep their digits
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return string(trimmed)
	}
	if _, err := dec.Token(); err != io.EOF {
		return string(trimmed)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(trimmed)
	}
	return string(out)
}

// QuestionKey identifies a question either by QaPair id or, for pairs that
// did not exist yet when the change was made, by question text and type.
type QuestionKey struct {
	ID           int64
	Question     string
	QuestionType QuestionType
}

// ByID builds a key for an existing QaPair
func ByID(id int64) QuestionKey {
	return QuestionKey{ID: id}
}

// ByQuestionText builds a key for a QaPair without an id
func ByQuestionText(question string, questionType QuestionType) QuestionKey {
	return QuestionKey{Question: question, QuestionType: questionType}
}

// IsByID reports whether the key matches on QaPair id
func (k QuestionKey) IsByID() bool {
	return k.ID != 0
}

func (k QuestionKey) String() string {
	if k.IsByID() {
		return fmt.Sprintf("id:%d", k.ID)
	}
	return fmt.Sprintf("text:%s:%s", k.QuestionType, k.Question)
}

// TemplateQuestion describes a question of a section template and when it is required
type TemplateQuestion struct {
	ID                int64        `json:"id" db:"id"`
	TemplateSectionID int64        `json:"template_section_id" db:"template_section_id"`
	Question          string       `json:"question" db:"question"`
	QuestionType      QuestionType `json:"question_type" db:"question_type"`
	Required          bool         `json:"required" db:"required"`
	DependsOnQuestion *string      `json:"depends_on_question,omitempty" db:"depends_on_question"`
	DependsOnValue    *string      `json:"depends_on_value,omitempty" db:"depends_on_value"`
}

// SaveQaPairsRequest represents POST /bookings/:id/qa-pairs
type SaveQaPairsRequest struct {
	QaPairs          []Change          `json:"qa_pairs" binding:"required,dive"`
	Flags            SubmissionFlags   `json:"flags"`
	EquipmentChanges []EquipmentChange `json:"equipmentChanges,omitempty"`
}

// Origin names who made a submission
type Origin string

const (
	OriginGuest Origin = "guest"
	OriginAdmin Origin = "admin"
)

// SubmissionFlags carries caller flags of a submission
type SubmissionFlags struct {
	Origin Origin `json:"origin,omitempty"`
}

// IsAdmin reports whether the submission was made by staff
func (f SubmissionFlags) IsAdmin() bool {
	return f.Origin == OriginAdmin
}

// SaveQaPairsResponse is the response of the QA save endpoint
type SaveQaPairsResponse struct {
	Success        bool `json:"success"`
	BookingAmended bool `json:"bookingAmended"`
}
