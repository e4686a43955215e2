// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundroots/communityos/models"
	"gorm.io/gorm"
)

// AppRepositoryImpl implements AppRepository interface
type AppRepositoryImpl struct {
	*BaseRepository[models.App, models.AppFilter]
}

// NewAppRepository creates a new app catalog repository
func NewAppRepository(db *gorm.DB) AppRepository {
	return &AppRepositoryImpl{
		BaseRepository: NewBaseRepository[models.App, models.AppFilter](db),
	}
}

// BySlug retrieves a catalog entry by its slug
func (r *AppRepositoryImpl) BySlug(ctx context.Context, slug string) (*models.App, error) {
	db := r.getDB(ctx)

	var app models.App
	err := db.Where("slug = ?", slug).
		Last(&app).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find app by slug: %w", err)
	}

	return &app, nil
}

// ListActive retrieves all active catalog entries in id order. The scorer
// relies on this ordering: ties in score keep catalog (id) order.
func (r *AppRepositoryImpl) ListActive(ctx context.Context) ([]*models.App, error) {
	db := r.getDB(ctx)

	var apps []*models.App
	err := db.Where("is_active = ?", true).
		Order("id ASC").
		Find(&apps).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list active apps: %w", err)
	}

	return apps, nil
}

// Update persists changes to an existing catalog entry
func (r *AppRepositoryImpl) Update(ctx context.Context, app *models.App) error {
	db := r.getDB(ctx)

	app.UpdatedAt = time.Now().UTC()
	err := db.Model(&models.App{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"name":                       app.Name,
			"description":                app.Description,
			"suitable_for_account_types": app.SuitableForAccountTypes,
			"age_restriction":            app.AgeRestriction,
			"relevant_intents":           app.RelevantIntents,
			"relevant_interests":         app.RelevantInterests,
			"is_active":                  app.IsActive,
			"updated_at":                 app.UpdatedAt,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to update app %d: %w", app.ID, err)
	}

	return nil
}

func (r *AppRepositoryImpl) applyFilter(query *gorm.DB, filter models.AppFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Slug != nil {
		query = query.Where("slug = ?", *filter.Slug)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves apps based on filter criteria
func (r *AppRepositoryImpl) ByFilter(ctx context.Context, filter models.AppFilter, orderBy string, limit, offset int) ([]*models.App, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.App{}), filter)

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

	var apps []*models.App
	err := query.Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find apps by filter: %w", err)
	}

	return apps, nil
}

// Count returns the number of apps matching the filter
func (r *AppRepositoryImpl) Count(ctx context.Context, filter models.AppFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.App{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count apps: %w", err)
	}

	return count, nil
}

// Exists checks if any app matching the filter exists
func (r *AppRepositoryImpl) Exists(ctx context.Context, filter models.AppFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
