// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/soundroots/communityos/models"
	"gorm.io/gorm"
)

// OTPVerificationRepositoryImpl implements OTPVerificationRepository interface
type OTPVerificationRepositoryImpl struct {
	*BaseRepository[models.OTPVerification, models.OTPVerificationFilter]
}

// NewOTPVerificationRepository creates a new OTP verification repository
func NewOTPVerificationRepository(db *gorm.DB) OTPVerificationRepository {
	return &OTPVerificationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OTPVerification, models.OTPVerificationFilter](db),
	}
}

// ListActiveOTPs retrieves pending, unexpired OTPs for a user
func (r *OTPVerificationRepositoryImpl) ListActiveOTPs(ctx context.Context, userID uint) ([]*models.OTPVerification, error) {
	db := r.getDB(ctx)

	var otps []*models.OTPVerification
	err := db.Where("user_id = ? AND status = ? AND expires_at > ?",
		userID, models.OTPStatusPending, time.Now()).
		Order("id DESC").
		Find(&otps).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list active OTPs: %w", err)
	}

	return otps, nil
}

// ExpireOldOTPs marks all pending OTPs of a type as expired for a user
func (r *OTPVerificationRepositoryImpl) ExpireOldOTPs(ctx context.Context, userID uint, otpType string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.OTPVerification{}).
		Where("user_id = ? AND otp_type = ? AND status = ?", userID, otpType, models.OTPStatusPending).
		Update("status", models.OTPStatusExpired).Error

	if err != nil {
		return fmt.Errorf("failed to expire old OTPs for user %d: %w", userID, err)
	}

	return nil
}

// ExpireStaleOTPs marks pending OTPs created before the cutoff as expired
// and returns how many rows were touched. Run by the maintenance scheduler.
func (r *OTPVerificationRepositoryImpl) ExpireStaleOTPs(ctx context.Context, olderThan time.Time) (int64, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.OTPVerification{}).
		Where("status = ? AND expires_at <= ?", models.OTPStatusPending, olderThan).
		Update("status", models.OTPStatusExpired)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire stale OTPs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *OTPVerificationRepositoryImpl) applyFilter(query *gorm.DB, filter models.OTPVerificationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.OTPType != nil {
		query = query.Where("otp_type = ?", *filter.OTPType)
	}
	if filter.OTPCode != nil {
		query = query.Where("otp_code = ?", *filter.OTPCode)
	}
	if filter.TargetValue != nil {
		query = query.Where("target_value = ?", *filter.TargetValue)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsActive != nil && *filter.IsActive {
		query = query.Where("status = ? AND expires_at > ?", models.OTPStatusPending, time.Now())
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves OTP verifications based on filter criteria
func (r *OTPVerificationRepositoryImpl) ByFilter(ctx context.Context, filter models.OTPVerificationFilter, orderBy string, limit, offset int) ([]*models.OTPVerification, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OTPVerification{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var otps []*models.OTPVerification
	err := query.Find(&otps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find OTP verifications by filter: %w", err)
	}

	return otps, nil
}

// Count returns the number of OTP verifications matching the filter
func (r *OTPVerificationRepositoryImpl) Count(ctx context.Context, filter models.OTPVerificationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OTPVerification{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count OTP verifications: %w", err)
	}

	return count, nil
}

// Exists checks if any OTP verification matching the filter exists
func (r *OTPVerificationRepositoryImpl) Exists(ctx context.Context, filter models.OTPVerificationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
