package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is an authentication account. Profile data the dashboards show lives
// in Profile; the role lives in UserRole.
type User struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Email            string            `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash     string            `json:"-" gorm:"not null"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	UserMetadata     datatypes.JSONMap `json:"user_metadata"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Profile struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	FullName  string     `json:"full_name" gorm:"not null"`
	Phone     *string    `json:"phone"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the profile's access period ended before now.
func (p *Profile) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}
