// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=255" example:"user@example.com or +14155552671"`
	Password   string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	User    AuthUserDTO    `json:"user"`
	Session UserSessionDTO `json:"session"`
}

// UserSessionDTO represents an issued session for API responses
type UserSessionDTO struct {
	SessionToken string `json:"session_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in" example:"3600"`
	TokenType    string `json:"token_type" example:"Bearer"`
	CreatedAt    string `json:"created_at" example:"2026-01-15T10:30:00Z"`
}

// ForgotPasswordRequest represents the request to initiate password reset
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=255" example:"user@example.com or +14155552671"`
}

// ForgetPasswordResponse represents the response after requesting password reset
type ForgetPasswordResponse struct {
	UserID      uint      `json:"user_id" example:"123"`
	MaskedPhone string    `json:"masked_phone" example:"+141555*****"`
	OTPExpiry   time.Time `json:"otp_expiry" example:"2026-01-15T16:35:00Z"`
}

// ResetPasswordRequest represents the request to reset password with OTP
type ResetPasswordRequest struct {
	UserID          uint   `json:"user_id" validate:"required" example:"123"`
	OTPCode         string `json:"otp_code" validate:"required,len=6,numeric" example:"123456"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=100" example:"NewSecurePass123!"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword" example:"NewSecurePass123!"`
}

// ResetPasswordResponse represents the response after successful password reset
type ResetPasswordResponse struct {
	User    AuthUserDTO    `json:"user"`
	Session UserSessionDTO `json:"session"`
}

// MaskPhoneNumber masks the middle digits of a phone number for security
func MaskPhoneNumber(phone string) string {
	if len(phone) < 8 {
		return phone
	}

	// For numbers like +14155552671, show +141555*****
	if len(phone) >= 10 {
		return phone[:7] + "*****"
	}

	// For shorter numbers, mask the middle part
	start := len(phone) / 3
	end := len(phone) - start
	masked := phone[:start] + "*****" + phone[end:]
	return masked
}
