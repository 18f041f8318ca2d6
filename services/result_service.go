package services

import (
	"context"

	"avtotest/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultService struct {
	db *gorm.DB
}

func NewResultService(db *gorm.DB) *ResultService {
	return &ResultService{db: db}
}

// SaveResult inserts a finished attempt. Results carry their id from the
// moment they are graded, so writing the same result twice is a no-op.
func (s *ResultService) SaveResult(ctx context.Context, result *models.Result) error {
	return s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(result).Error
}

func (s *ResultService) ListUserResults(ctx context.Context, userID uuid.UUID) ([]models.Result, error) {
	var results []models.Result
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Ticket").
		Order("completed_at DESC").
		Find(&results).Error
	return results, err
}
