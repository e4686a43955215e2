// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// SignupRequest represents the signup form data
type SignupRequest struct {
	// Account type selection
	AccountType string `json:"account_type" validate:"required,oneof=individual band organisation"`

	// Organisation fields (required for band and organisation accounts)
	OrganisationName *string `json:"organisation_name,omitempty" validate:"omitempty,max=120"`
	City             *string `json:"city,omitempty" validate:"omitempty,max=80"`

	// Personal fields (required for all types)
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
	Mobile    string `json:"mobile" validate:"required,e164"`

	// Date of birth (required for individual accounts, used for age-gated
	// recommendation eligibility)
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" validate:"omitempty"`

	// Common fields (required for all types)
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// SignupResponse represents the response after successful signup initiation
type SignupResponse struct {
	Message   string `json:"message"`
	UserID    uint   `json:"user_id"`
	OTPSent   bool   `json:"otp_sent"`
	OTPTarget string `json:"otp_target"` // Mobile number (masked for security)
}

// OTPVerificationRequest represents the OTP verification request
type OTPVerificationRequest struct {
	UserID  uint   `json:"user_id" validate:"required"`
	OTPCode string `json:"otp_code" validate:"required,len=6,numeric"`
	OTPType string `json:"otp_type" validate:"required,oneof=mobile email"`
}

// OTPVerificationResponse represents the response after successful OTP verification
type OTPVerificationResponse struct {
	Message      string      `json:"message"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         AuthUserDTO `json:"user"`
}

// OTPResendRequest represents the OTP resend request
type OTPResendRequest struct {
	UserID  uint   `json:"user_id" validate:"required"`
	OTPType string `json:"otp_type" validate:"required,oneof=mobile email"`
}

// OTPResendResponse represents the response after an OTP resend
type OTPResendResponse struct {
	Message         string `json:"message"`
	OTPSent         bool   `json:"otp_sent"`
	MaskedOTPTarget string `json:"masked_otp_target"`
}

// AuthUserDTO represents user data for API responses
type AuthUserDTO struct {
	ID               uint    `json:"id"`
	UUID             string  `json:"uuid"`
	AccountType      string  `json:"account_type"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Mobile           string  `json:"mobile"`
	Email            string  `json:"email"`
	OrganisationName *string `json:"organisation_name,omitempty"`
	City             *string `json:"city,omitempty"`
	IsEmailVerified  *bool   `json:"is_email_verified"`
	IsMobileVerified *bool   `json:"is_mobile_verified"`
	IsActive         *bool   `json:"is_active"`
	CreatedAt        string  `json:"created_at"`
}
