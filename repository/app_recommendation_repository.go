// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/soundroots/communityos/models"
	"gorm.io/gorm"
)

// AppRecommendationRepositoryImpl implements AppRecommendationRepository interface
type AppRecommendationRepositoryImpl struct {
	*BaseRepository[models.AppRecommendation, models.AppRecommendationFilter]
}

// NewAppRecommendationRepository creates a new recommendation repository
func NewAppRecommendationRepository(db *gorm.DB) AppRecommendationRepository {
	return &AppRecommendationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AppRecommendation, models.AppRecommendationFilter](db),
	}
}

// ListByUser retrieves the user's current recommendation set, highest
// score first. Equal scores keep catalog order (app id ascending).
func (r *AppRecommendationRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*models.AppRecommendation, error) {
	db := r.getDB(ctx)

	var recommendations []*models.AppRecommendation
	err := db.Where("user_id = ?", userID).
		Order("recommendation_score DESC, app_id ASC").
		Preload("App").
		Find(&recommendations).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations by user: %w", err)
	}

	return recommendations, nil
}

// DeleteByUser removes all recommendation rows for a user. Callers run
// this inside the same transaction as the subsequent batch insert so a
// crash cannot leave a mixed old/new set.
func (r *AppRecommendationRepositoryImpl) DeleteByUser(ctx context.Context, userID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Where("user_id = ?", userID).
		Delete(&models.AppRecommendation{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete recommendations for user %d: %w", userID, err)
	}

	return nil
}

// MarkAccepted flags a recommendation as accepted. Accepting twice is a
// no-op; the first accepted_at wins.
func (r *AppRecommendationRepositoryImpl) MarkAccepted(ctx context.Context, recommendationID uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.AppRecommendation{}).
		Where("id = ? AND accepted = ?", recommendationID, false).
		Updates(map[string]any{
			"accepted":    true,
			"accepted_at": at,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to mark recommendation %d accepted: %w", recommendationID, err)
	}

	return nil
}

// CountByApp returns how many recommendation rows exist for an app,
// optionally restricted to accepted ones. Used by the back-office export.
func (r *AppRecommendationRepositoryImpl) CountByApp(ctx context.Context, appID uint, acceptedOnly bool) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.AppRecommendation{}).Where("app_id = ?", appID)
	if acceptedOnly {
		query = query.Where("accepted = ?", true)
	}

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recommendations for app %d: %w", appID, err)
	}

	return count, nil
}

func (r *AppRecommendationRepositoryImpl) applyFilter(query *gorm.DB, filter models.AppRecommendationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.AppID != nil {
		query = query.Where("app_id = ?", *filter.AppID)
	}
	if filter.Accepted != nil {
		query = query.Where("accepted = ?", *filter.Accepted)
	}
	if filter.ShownAfter != nil {
		query = query.Where("shown_at >= ?", *filter.ShownAfter)
	}
	if filter.ShownBefore != nil {
		query = query.Where("shown_at <= ?", *filter.ShownBefore)
	}
	return query
}

// ByFilter retrieves recommendations based on filter criteria
func (r *AppRecommendationRepositoryImpl) ByFilter(ctx context.Context, filter models.AppRecommendationFilter, orderBy string, limit, offset int) ([]*models.AppRecommendation, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AppRecommendation{}), filter)

	if orderBy == "" {
		orderBy = "recommendation_score DESC, app_id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var recommendations []*models.AppRecommendation
	err := query.Find(&recommendations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find recommendations by filter: %w", err)
	}

	return recommendations, nil
}

// Count returns the number of recommendations matching the filter
func (r *AppRecommendationRepositoryImpl) Count(ctx context.Context, filter models.AppRecommendationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AppRecommendation{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}

	return count, nil
}

// Exists checks if any recommendation matching the filter exists
func (r *AppRecommendationRepositoryImpl) Exists(ctx context.Context, filter models.AppRecommendationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
