package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Question struct {
	ID            uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	TicketID      uuid.UUID                   `json:"ticket_id" gorm:"type:uuid;not null;index"`
	QuestionText  string                      `json:"question_text" gorm:"type:text;not null"`
	ImageURL      *string                     `json:"image_url"`
	Options       datatypes.JSONSlice[string] `json:"options" gorm:"not null"`
	CorrectAnswer string                      `json:"correct_answer" gorm:"type:text;not null"`
	Explanation   *string                     `json:"explanation" gorm:"type:text"`
	OrderNum      int                         `json:"order_num" gorm:"not null;default:0"`
	CreatedAt     time.Time                   `json:"created_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// HasOption reports whether option is one of the question's answer texts.
func (q *Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}
