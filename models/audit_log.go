// Package models contains domain entities and business models for the community platform
package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	User         *User           `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Action       string          `gorm:"type:audit_action_enum;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb;index:idx_audit_metadata,type:gin" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionSignupInitiated           = "signup_initiated"
	AuditActionSignupCompleted           = "signup_completed"
	AuditActionSignupFailed              = "signup_failed"
	AuditActionOTPVerificationFailed     = "otp_verification_failed"
	AuditActionOTPResent                 = "otp_resent"
	AuditActionOTPResendFailed           = "otp_resend_failed"
	AuditActionOTPSMSFailed              = "otp_sms_failed"
	AuditActionLoginSuccessful           = "login_successful"
	AuditActionLoginFailed               = "login_failed"
	AuditActionLogout                    = "logout"
	AuditActionPasswordResetRequested    = "password_reset_requested"
	AuditActionPasswordResetCompleted    = "password_reset_completed"
	AuditActionPasswordResetFailed       = "password_reset_failed"
	AuditActionOnboardingStepSaved       = "onboarding_step_saved"
	AuditActionOnboardingStepFailed      = "onboarding_step_failed"
	AuditActionRecommendationsGenerated  = "recommendations_generated"
	AuditActionRecommendationsFailed     = "recommendations_failed"
	AuditActionRecommendationAccepted    = "recommendation_accepted"
	AuditActionAppCatalogEntryCreated    = "app_catalog_entry_created"
	AuditActionAppCatalogEntryUpdated    = "app_catalog_entry_updated"
	AuditActionSessionCreated            = "session_created"
	AuditActionSessionExpired            = "session_expired"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// IsSecurityEvent reports whether the action is one of the auth-sensitive
// actions surfaced in security reviews.
func (a *AuditLog) IsSecurityEvent() bool {
	securityActions := map[string]bool{
		AuditActionLoginSuccessful:       true,
		AuditActionLoginFailed:           true,
		AuditActionOTPVerificationFailed: true,
		AuditActionSessionExpired:        true,
	}
	return securityActions[a.Action]
}
