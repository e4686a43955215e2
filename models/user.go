// Package models contains domain entities and business models for the community platform
package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid;index:idx_users_uuid" json:"uuid"`
	AccountTypeID uint        `gorm:"not null;index:idx_users_account_type_id" json:"account_type_id"`
	AccountType   AccountType `gorm:"foreignKey:AccountTypeID;references:ID" json:"account_type,omitempty"`

	FirstName string     `gorm:"size:255;not null" json:"first_name"`
	LastName  string     `gorm:"size:255;not null" json:"last_name"`
	Mobile    string     `gorm:"size:15;not null;uniqueIndex:idx_users_mobile" json:"mobile"`
	Email     string     `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	DateOfBirth *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`

	// Organisation fields (bands and organisations)
	OrganisationName *string `gorm:"size:120" json:"organisation_name,omitempty"`
	City             *string `gorm:"size:120" json:"city,omitempty"`

	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash

	// Status and verification
	IsEmailVerified  *bool `gorm:"default:false" json:"is_email_verified"`
	IsMobileVerified *bool `gorm:"default:false" json:"is_mobile_verified"`
	IsActive         *bool `gorm:"default:true;index:idx_users_is_active" json:"is_active"`

	// Timestamps
	CreatedAt        time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	MobileVerifiedAt *time.Time `json:"mobile_verified_at,omitempty"`
	LastLoginAt      *time.Time `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`

	// Relations
	OTPVerifications    []OTPVerification    `gorm:"foreignKey:UserID" json:"-"`
	Sessions            []UserSession        `gorm:"foreignKey:UserID" json:"-"`
	AuditLogs           []AuditLog           `gorm:"foreignKey:UserID" json:"-"`
	OnboardingResponses []OnboardingResponse `gorm:"foreignKey:UserID" json:"-"`
	Recommendations     []AppRecommendation  `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID               *uint
	UUID             *uuid.UUID
	AccountTypeID    *uint
	AccountTypeName  *string
	Email            *string
	Mobile           *string
	IsEmailVerified  *bool
	IsMobileVerified *bool
	IsActive         *bool
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
	LastLoginAfter   *time.Time
	LastLoginBefore  *time.Time
}

func (u *User) IsIndividual() bool {
	return u.AccountType.TypeName == AccountTypeIndividual
}

func (u *User) IsBand() bool {
	return u.AccountType.TypeName == AccountTypeBand
}

func (u *User) IsOrganisation() bool {
	return u.AccountType.TypeName == AccountTypeOrganisation
}

func (u *User) RequiresOrganisationFields() bool {
	return u.IsBand() || u.IsOrganisation()
}

// IsMinor reports whether the user is under 18 at the given time.
// Users without a recorded date of birth are treated as adults.
func (u *User) IsMinor(at time.Time) bool {
	if u.DateOfBirth == nil {
		return false
	}
	eighteenth := u.DateOfBirth.AddDate(18, 0, 0)
	return at.Before(eighteenth)
}
