// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/soundroots/communityos/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AccountTypeRepository defines operations for account types
type AccountTypeRepository interface {
	Repository[models.AccountType, models.AccountTypeFilter]
	ByTypeName(ctx context.Context, typeName string) (*models.AccountType, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByMobile(ctx context.Context, mobile string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	UpdateVerificationStatus(ctx context.Context, userID uint, isMobileVerified, isEmailVerified *bool, mobileVerifiedAt, emailVerifiedAt *time.Time) error
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
}

// OTPVerificationRepository defines operations for OTP verifications
type OTPVerificationRepository interface {
	Repository[models.OTPVerification, models.OTPVerificationFilter]
	ListActiveOTPs(ctx context.Context, userID uint) ([]*models.OTPVerification, error)
	ExpireOldOTPs(ctx context.Context, userID uint, otpType string) error
	ExpireStaleOTPs(ctx context.Context, olderThan time.Time) (int64, error)
}

// UserSessionRepository defines operations for user sessions
type UserSessionRepository interface {
	Repository[models.UserSession, models.UserSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.UserSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error)
	ListActiveSessionsByUser(ctx context.Context, userID uint) ([]*models.UserSession, error)
	ExpireAllUserSessions(ctx context.Context, userID uint) error
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}

// OnboardingResponseRepository defines operations for the onboarding answer log
type OnboardingResponseRepository interface {
	Repository[models.OnboardingResponse, models.OnboardingResponseFilter]
	ListByUser(ctx context.Context, userID uint) ([]*models.OnboardingResponse, error)
	LatestByQuestionKey(ctx context.Context, userID uint, questionKey string) (*models.OnboardingResponse, error)
}

// AppRepository defines operations for the app catalog
type AppRepository interface {
	Repository[models.App, models.AppFilter]
	BySlug(ctx context.Context, slug string) (*models.App, error)
	ListActive(ctx context.Context) ([]*models.App, error)
	Update(ctx context.Context, app *models.App) error
}

// AppRecommendationRepository defines operations for persisted recommendation sets
type AppRecommendationRepository interface {
	Repository[models.AppRecommendation, models.AppRecommendationFilter]
	ListByUser(ctx context.Context, userID uint) ([]*models.AppRecommendation, error)
	DeleteByUser(ctx context.Context, userID uint) error
	MarkAccepted(ctx context.Context, recommendationID uint, at time.Time) error
	CountByApp(ctx context.Context, appID uint, acceptedOnly bool) (int64, error)
}

// AdminRepository defines operations for back-office admins
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	UpdateLastLogin(ctx context.Context, adminID uint, at time.Time) error
}
