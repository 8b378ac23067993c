package models

import "time"

// Equipment is an inventory item that can be attached to a booking
type Equipment struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
}

// BookingEquipment links an equipment item to a booking through the question that selected it
type BookingEquipment struct {
	BookingID   int64     `json:"booking_id" db:"booking_id"`
	EquipmentID int64     `json:"equipment_id" db:"equipment_id"`
	Question    string    `json:"question" db:"question"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// EquipmentChange is a submitted swap of the equipment selected for a question
type EquipmentChange struct {
	Question      string `json:"question" binding:"required"`
	EquipmentID   int64  `json:"equipment_id" binding:"required"`
	EquipmentName string `json:"equipment_name,omitempty"`
	OldID         *int64 `json:"old_id,omitempty"`
	OldName       string `json:"old_name,omitempty"`
	Dirty         bool   `json:"dirty,omitempty"`
}

// IsDirty reports whether the change swaps to a different item
func (c EquipmentChange) IsDirty() bool {
	if !c.Dirty {
		return false
	}
	if c.OldID != nil {
		return *c.OldID != c.EquipmentID
	}
	return c.OldName != "" && c.OldName != c.EquipmentName
}

// Key identifies equipment amendments by the selecting question
func (c EquipmentChange) Key() QuestionKey {
	return ByQuestionText(c.Question, QuestionTypeEquipment)
}
