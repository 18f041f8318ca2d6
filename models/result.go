package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnswerOutcome is one graded question of a finished attempt. Selected is nil
// when the question was left unanswered.
type AnswerOutcome struct {
	QuestionID uuid.UUID `json:"question_id"`
	Selected   *string   `json:"selected"`
	Correct    bool      `json:"correct"`
}

// Result is written once per finished attempt and never updated.
type Result struct {
	ID               uuid.UUID                          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID                          `json:"user_id" gorm:"type:uuid;not null;index"`
	TicketID         uuid.UUID                          `json:"ticket_id" gorm:"type:uuid;not null;index"`
	Score            int                                `json:"score" gorm:"not null"`
	TotalQuestions   int                                `json:"total_questions" gorm:"not null"`
	CorrectAnswers   int                                `json:"correct_answers" gorm:"not null"`
	Answers          datatypes.JSONSlice[AnswerOutcome] `json:"answers" gorm:"not null"`
	TimeSpentSeconds int                                `json:"time_spent_seconds" gorm:"not null;default:0"`
	CompletedAt      time.Time                          `json:"completed_at" gorm:"not null;index"`

	// Relationships
	Ticket *Ticket `json:"ticket,omitempty"`
}

func (r *Result) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (Result) TableName() string {
	return "test_results"
}
