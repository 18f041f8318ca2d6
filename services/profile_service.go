package services

import (
	"context"
	"time"

	"avtotest/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// SetExpiryRequest carries a date as YYYY-MM-DD; null or "" clears it.
type SetExpiryRequest struct {
	ExpiresAt *string `json:"expires_at"`
}

// SetExpiry is the follow-up write after account creation that limits how
// long an account stays active. It is not atomic with creation.
func (s *ProfileService) SetExpiry(ctx context.Context, userID uuid.UUID, req *SetExpiryRequest) (*models.Profile, error) {
	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		t, err := time.Parse(time.DateOnly, *req.ExpiresAt)
		if err != nil {
			return nil, NewInvalidInputError("expires_at must be a date in YYYY-MM-DD format")
		}
		expiresAt = &t
	}

	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("expires_at", expiresAt)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewNotFoundError("profile not found")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
