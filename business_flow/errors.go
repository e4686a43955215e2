// Package businessflow contains the core business logic and use cases for onboarding and recommendation workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrAccountTypeNotFound = errors.New("account type not found")
	ErrIncorrectPassword   = errors.New("incorrect password")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrMobileAlreadyExists = errors.New("mobile number already exists")

	// Account-type field errors
	ErrOrganisationFieldsRequired = errors.New("organisation fields are required for band and organisation accounts")
	ErrDateOfBirthRequired        = errors.New("date of birth is required for individual accounts")

	// OTP-related errors
	ErrNoValidOTPFound   = errors.New("no valid OTP found")
	ErrInvalidOTPCode    = errors.New("invalid OTP code")
	ErrInvalidOTPType    = errors.New("invalid OTP type")
	ErrOTPExpired        = errors.New("OTP has expired")
	ErrOTPResendTooSoon  = errors.New("OTP was resent too recently")
	ErrCacheNotAvailable = errors.New("cache not available")

	ErrAlreadyVerified = errors.New("already verified")

	// Onboarding-related errors
	ErrPrimaryIntentRequired  = errors.New("primary intent is required")
	ErrUnknownQuestionKey     = errors.New("unknown onboarding question key")
	ErrOnboardingNotCompleted = errors.New("onboarding step not completed")

	// Recommendation-related errors
	ErrRecommendationNotFound     = errors.New("recommendation not found")
	ErrRecommendationAccessDenied = errors.New("recommendation access denied")

	// Admin-related errors
	ErrAdminNotFound  = errors.New("admin not found")
	ErrAdminInactive  = errors.New("admin account is inactive")
	ErrInvalidCaptcha = errors.New("invalid captcha")

	// App catalog errors
	ErrAppNotFound           = errors.New("app not found")
	ErrAppSlugAlreadyExists  = errors.New("app slug already exists")
	ErrAppSlugRequired       = errors.New("app slug is required")
	ErrAppNameRequired       = errors.New("app name is required")
	ErrInvalidAgeRestriction = errors.New("invalid age restriction")
	ErrInvalidAccountType    = errors.New("invalid account type")
	ErrAppUpdateRequired     = errors.New("at least one field must be provided for update")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsAccountTypeNotFound(err error) bool {
	return errors.Is(err, ErrAccountTypeNotFound)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsMobileAlreadyExists(err error) bool {
	return errors.Is(err, ErrMobileAlreadyExists)
}

func IsOrganisationFieldsRequired(err error) bool {
	return errors.Is(err, ErrOrganisationFieldsRequired)
}

func IsDateOfBirthRequired(err error) bool {
	return errors.Is(err, ErrDateOfBirthRequired)
}

func IsNoValidOTPFound(err error) bool {
	return errors.Is(err, ErrNoValidOTPFound)
}

func IsInvalidOTPCode(err error) bool {
	return errors.Is(err, ErrInvalidOTPCode)
}

func IsInvalidOTPType(err error) bool {
	return errors.Is(err, ErrInvalidOTPType)
}

func IsOTPExpired(err error) bool {
	return errors.Is(err, ErrOTPExpired)
}

func IsOTPResendTooSoon(err error) bool {
	return errors.Is(err, ErrOTPResendTooSoon)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}

func IsAlreadyVerified(err error) bool {
	return errors.Is(err, ErrAlreadyVerified)
}

func IsPrimaryIntentRequired(err error) bool {
	return errors.Is(err, ErrPrimaryIntentRequired)
}

func IsUnknownQuestionKey(err error) bool {
	return errors.Is(err, ErrUnknownQuestionKey)
}

func IsRecommendationNotFound(err error) bool {
	return errors.Is(err, ErrRecommendationNotFound)
}

func IsRecommendationAccessDenied(err error) bool {
	return errors.Is(err, ErrRecommendationAccessDenied)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

func IsInvalidCaptcha(err error) bool {
	return errors.Is(err, ErrInvalidCaptcha)
}

func IsAppNotFound(err error) bool {
	return errors.Is(err, ErrAppNotFound)
}

func IsAppSlugAlreadyExists(err error) bool {
	return errors.Is(err, ErrAppSlugAlreadyExists)
}

func IsAppSlugRequired(err error) bool {
	return errors.Is(err, ErrAppSlugRequired)
}

func IsAppNameRequired(err error) bool {
	return errors.Is(err, ErrAppNameRequired)
}

func IsInvalidAgeRestriction(err error) bool {
	return errors.Is(err, ErrInvalidAgeRestriction)
}

func IsInvalidAccountType(err error) bool {
	return errors.Is(err, ErrInvalidAccountType)
}

func IsAppUpdateRequired(err error) bool {
	return errors.Is(err, ErrAppUpdateRequired)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
