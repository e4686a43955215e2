// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundroots/communityos/models"
	"gorm.io/gorm"
)

// OnboardingResponseRepositoryImpl implements OnboardingResponseRepository interface
type OnboardingResponseRepositoryImpl struct {
	*BaseRepository[models.OnboardingResponse, models.OnboardingResponseFilter]
}

// NewOnboardingResponseRepository creates a new onboarding response repository
func NewOnboardingResponseRepository(db *gorm.DB) OnboardingResponseRepository {
	return &OnboardingResponseRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OnboardingResponse, models.OnboardingResponseFilter](db),
	}
}

// ListByUser retrieves all response rows for a user in insertion order.
// The log has no uniqueness constraint on (user_id, question_key);
// callers that need one answer per key take the last row for that key.
func (r *OnboardingResponseRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*models.OnboardingResponse, error) {
	db := r.getDB(ctx)

	var responses []*models.OnboardingResponse
	err := db.Where("user_id = ?", userID).
		Order("id ASC").
		Find(&responses).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list onboarding responses by user: %w", err)
	}

	return responses, nil
}

// LatestByQuestionKey retrieves the most recent response row (by insertion
// order) for a user and question key, or nil if the user never answered it.
func (r *OnboardingResponseRepositoryImpl) LatestByQuestionKey(ctx context.Context, userID uint, questionKey string) (*models.OnboardingResponse, error) {
	db := r.getDB(ctx)

	var response models.OnboardingResponse
	err := db.Where("user_id = ? AND question_key = ?", userID, questionKey).
		Order("id DESC").
		First(&response).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest onboarding response: %w", err)
	}

	return &response, nil
}

func (r *OnboardingResponseRepositoryImpl) applyFilter(query *gorm.DB, filter models.OnboardingResponseFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.QuestionKey != nil {
		query = query.Where("question_key = ?", *filter.QuestionKey)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves onboarding responses based on filter criteria
func (r *OnboardingResponseRepositoryImpl) ByFilter(ctx context.Context, filter models.OnboardingResponseFilter, orderBy string, limit, offset int) ([]*models.OnboardingResponse, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OnboardingResponse{}), filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var responses []*models.OnboardingResponse
	err := query.Find(&responses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find onboarding responses by filter: %w", err)
	}

	return responses, nil
}

// Count returns the number of onboarding responses matching the filter
func (r *OnboardingResponseRepositoryImpl) Count(ctx context.Context, filter models.OnboardingResponseFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OnboardingResponse{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count onboarding responses: %w", err)
	}

	return count, nil
}

// Exists checks if any onboarding response matching the filter exists
func (r *OnboardingResponseRepositoryImpl) Exists(ctx context.Context, filter models.OnboardingResponseFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
