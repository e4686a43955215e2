// Package testing provides test utilities and database setup for testing the community platform
package testing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a test user with the specified account type
func (tf *TestFixtures) CreateTestUser(accountTypeName string) (*models.User, error) {
	// Get account type
	var accountType models.AccountType
	err := tf.DB.DB.Where("type_name = ?", accountTypeName).Last(&accountType).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find account type %s: %w", accountTypeName, err)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// create random number containing exactly 9 digits
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		UUID:             uuid.New(),
		AccountTypeID:    accountType.ID,
		FirstName:        "Jamie",
		LastName:         "Doe",
		Mobile:           fmt.Sprintf("+447%s", randomDigits),
		Email:            fmt.Sprintf("jamie.doe.%d.%s@example.com", accountType.ID, randomDigits),
		PasswordHash:     string(hashedPassword),
		IsActive:         utils.ToPtr(true),
		IsEmailVerified:  utils.ToPtr(false),
		IsMobileVerified: utils.ToPtr(false),
	}

	// Bands and organisations carry organisation fields
	switch accountTypeName {
	case models.AccountTypeBand:
		user.OrganisationName = utils.ToPtr("The Test Signals")
		user.City = utils.ToPtr("Manchester")
	case models.AccountTypeOrganisation:
		user.OrganisationName = utils.ToPtr("Test Venue Ltd")
		user.City = utils.ToPtr("London")
	}

	err = tf.DB.DB.Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	user.AccountType = accountType
	return user, nil
}

// CreateTestUserWithAge creates a test user whose date of birth puts them
// at the given age in whole years.
func (tf *TestFixtures) CreateTestUserWithAge(accountTypeName string, years int) (*models.User, error) {
	user, err := tf.CreateTestUser(accountTypeName)
	if err != nil {
		return nil, err
	}

	dob := time.Now().UTC().AddDate(-years, 0, -1)
	user.DateOfBirth = &dob
	if err := tf.DB.DB.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to set date of birth: %w", err)
	}

	return user, nil
}

// CreateTestOTP creates a test OTP verification record
func (tf *TestFixtures) CreateTestOTP(userID uint, otpType, otpCode string) (*models.OTPVerification, error) {
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(), // Generate new UUID for correlation
		UserID:        userID,
		OTPCode:       otpCode,
		OTPType:       otpType,
		TargetValue:   "+447123456789",
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   3,
		ExpiresAt:     time.Now().Add(5 * time.Minute),
	}

	err := tf.DB.DB.Create(otp).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test OTP: %w", err)
	}

	return otp, nil
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateTestSession creates a test user session
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.UserSession, error) {
	sessionToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure session token: %w", err)
	}

	refreshToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure refresh token: %w", err)
	}

	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	session := &models.UserSession{
		CorrelationID: uuid.New(), // Generate new UUID for correlation
		UserID:        userID,
		SessionToken:  sessionToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	err = tf.DB.DB.Create(session).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(userID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		UserID:      userID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	err := tf.DB.DB.Create(audit).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

// CreateTestAdmin creates a back office admin with the given credentials
func (tf *TestFixtures) CreateTestAdmin(username, password string) (*models.Admin, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}

	return admin, nil
}

// CreateTestApp creates a catalog app and returns it
func (tf *TestFixtures) CreateTestApp(app *models.App) (*models.App, error) {
	if app.Slug == "" {
		app.Slug = fmt.Sprintf("test-app-%d", rand.Intn(10000000))
	}
	if app.Name == "" {
		app.Name = "Test App"
	}
	if app.IsActive == nil {
		app.IsActive = utils.ToPtr(true)
	}

	if err := tf.DB.DB.Create(app).Error; err != nil {
		return nil, fmt.Errorf("failed to create test app: %w", err)
	}

	return app, nil
}

// SaveIntentResponse appends an intent answer row for the user
func (tf *TestFixtures) SaveIntentResponse(userID uint, primaryIntent string, specificGoals []string) (*models.OnboardingResponse, error) {
	payload, err := json.Marshal(models.IntentResponse{
		PrimaryIntent: primaryIntent,
		SpecificGoals: specificGoals,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent response: %w", err)
	}

	return tf.saveOnboardingResponse(userID, models.QuestionKeyIntent, payload)
}

// SaveProfileSetupResponse appends a profile setup answer row for the user
func (tf *TestFixtures) SaveProfileSetupResponse(userID uint, displayName string, interests []string) (*models.OnboardingResponse, error) {
	payload, err := json.Marshal(models.ProfileSetupResponse{
		DisplayName: displayName,
		Interests:   interests,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile setup response: %w", err)
	}

	return tf.saveOnboardingResponse(userID, models.QuestionKeyProfileSetup, payload)
}

func (tf *TestFixtures) saveOnboardingResponse(userID uint, questionKey string, payload json.RawMessage) (*models.OnboardingResponse, error) {
	response := &models.OnboardingResponse{
		UserID:      userID,
		QuestionKey: questionKey,
		Response:    payload,
	}

	if err := tf.DB.DB.Create(response).Error; err != nil {
		return nil, fmt.Errorf("failed to create onboarding response: %w", err)
	}

	return response, nil
}

// CreateTestRecommendation creates a stored recommendation row
func (tf *TestFixtures) CreateTestRecommendation(userID, appID uint, score int) (*models.AppRecommendation, error) {
	rec := &models.AppRecommendation{
		UserID:              userID,
		AppID:               appID,
		RecommendationScore: score,
		ShownAt:             time.Now().UTC(),
		Accepted:            utils.ToPtr(false),
	}

	if err := tf.DB.DB.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create test recommendation: %w", err)
	}

	return rec, nil
}

// CreateExpiredOTP creates an expired OTP for testing
func (tf *TestFixtures) CreateExpiredOTP(userID uint) (*models.OTPVerification, error) {
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        userID,
		OTPCode:       "123456",
		OTPType:       models.OTPTypeMobile,
		TargetValue:   "+447123456789",
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   3,
		ExpiresAt:     time.Now().Add(-1 * time.Hour), // Expired 1 hour ago
	}

	err := tf.DB.DB.Create(otp).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create expired OTP: %w", err)
	}

	return otp, nil
}
