package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Ticket struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TicketNumber int       `json:"ticket_number" gorm:"uniqueIndex;not null"`
	Title        string    `json:"title" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`

	// Relationships
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TicketID"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
