package tests

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/soundroots/communityos/app/dto"
	"github.com/soundroots/communityos/app/services"
	businessflow "github.com/soundroots/communityos/business_flow"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	testingutil "github.com/soundroots/communityos/testing"
	"github.com/soundroots/communityos/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testFixturePassword = "TestPass123!"

func newLoginFlow(t *testing.T, db *gorm.DB) (businessflow.LoginFlow, repository.OTPVerificationRepository, repository.UserSessionRepository) {
	t.Helper()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)
	otpRepo := repository.NewOTPVerificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	accountTypeRepo := repository.NewAccountTypeRepository(db)

	tokenService, err := services.NewTokenService(
		15*time.Minute, 7*24*time.Hour,
		"communityos-test", "communityos-api",
		false, "", "", "test-secret-key-for-login-tests",
	)
	require.NoError(t, err)

	notificationSvc := services.NewNotificationService(
		services.NewMockSMSProvider(),
		services.NewMockEmailProvider(),
	)

	flow := businessflow.NewLoginFlow(
		userRepo, sessionRepo, otpRepo, auditRepo, accountTypeRepo,
		tokenService, notificationSvc, db,
	)

	return flow, otpRepo, sessionRepo
}

func TestLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, _, sessionRepo := newLoginFlow(t, testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("ByEmail", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			resp, err := flow.Login(ctx, &dto.LoginRequest{
				Identifier: user.Email,
				Password:   testFixturePassword,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, user.ID, resp.User.ID)
			assert.Equal(t, models.AccountTypeIndividual, resp.User.AccountType)
			assert.NotEmpty(t, resp.Session.SessionToken)
			assert.NotEmpty(t, resp.Session.RefreshToken)
			assert.Equal(t, "Bearer", resp.Session.TokenType)

			session, err := sessionRepo.BySessionToken(ctx, resp.Session.SessionToken)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, user.ID, session.UserID)
		})

		t.Run("ByMobile", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeBand)
			require.NoError(t, err)

			resp, err := flow.Login(ctx, &dto.LoginRequest{
				Identifier: user.Mobile,
				Password:   testFixturePassword,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, user.ID, resp.User.ID)
			assert.Equal(t, models.AccountTypeBand, resp.User.AccountType)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			_, err = flow.Login(ctx, &dto.LoginRequest{
				Identifier: user.Email,
				Password:   "WrongPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsIncorrectPassword(err))
		})

		t.Run("UnknownIdentifier", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := flow.Login(ctx, &dto.LoginRequest{
				Identifier: "nobody@example.com",
				Password:   testFixturePassword,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsUserNotFound(err))
		})

		t.Run("InactiveAccount", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("is_active", false).Error)

			_, err = flow.Login(ctx, &dto.LoginRequest{
				Identifier: user.Email,
				Password:   testFixturePassword,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		t.Run("UpdatesLastLogin", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			_, err = flow.Login(ctx, &dto.LoginRequest{
				Identifier: user.Email,
				Password:   testFixturePassword,
			}, metadata)
			require.NoError(t, err)

			var reloaded models.User
			require.NoError(t, testDB.DB.First(&reloaded, user.ID).Error)
			require.NotNil(t, reloaded.LastLoginAt)
			assert.WithinDuration(t, utils.UTCNow(), *reloaded.LastLoginAt, time.Minute)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestForgotPassword(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, otpRepo, _ := newLoginFlow(t, testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("CreatesPasswordResetOTP", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			resp, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{
				Identifier: user.Email,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, user.ID, resp.UserID)
			assert.True(t, strings.HasSuffix(resp.MaskedPhone, "*****"))
			assert.Equal(t, user.Mobile[:7], resp.MaskedPhone[:7])
			assert.True(t, resp.OTPExpiry.After(utils.UTCNow()))

			otps, err := otpRepo.ByFilter(ctx, models.OTPVerificationFilter{
				UserID:  &user.ID,
				OTPType: utils.ToPtr(models.OTPTypePasswordReset),
			}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, otps, 1)
			assert.Equal(t, models.OTPStatusPending, otps[0].Status)
		})

		t.Run("ReplacesPreviousResetOTP", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			_, err = flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Identifier: user.Email}, metadata)
			require.NoError(t, err)
			_, err = flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Identifier: user.Email}, metadata)
			require.NoError(t, err)

			pending, err := otpRepo.ByFilter(ctx, models.OTPVerificationFilter{
				UserID:  &user.ID,
				OTPType: utils.ToPtr(models.OTPTypePasswordReset),
				Status:  utils.ToPtr(models.OTPStatusPending),
			}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, pending, 1)
		})

		t.Run("UnknownIdentifier", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{
				Identifier: "nobody@example.com",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsUserNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, otpRepo, sessionRepo := newLoginFlow(t, testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		requestReset := func(t *testing.T, user *models.User) string {
			t.Helper()

			_, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Identifier: user.Email}, metadata)
			require.NoError(t, err)

			otps, err := otpRepo.ByFilter(ctx, models.OTPVerificationFilter{
				UserID:  &user.ID,
				OTPType: utils.ToPtr(models.OTPTypePasswordReset),
				Status:  utils.ToPtr(models.OTPStatusPending),
			}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, otps, 1)

			return otps[0].OTPCode
		}

		t.Run("ValidOTPChangesPassword", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			code := requestReset(t, user)

			resp, err := flow.ResetPassword(ctx, &dto.ResetPasswordRequest{
				UserID:          user.ID,
				OTPCode:         code,
				NewPassword:     "BrandNewPass456!",
				ConfirmPassword: "BrandNewPass456!",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, user.ID, resp.User.ID)
			assert.NotEmpty(t, resp.Session.SessionToken)

			var reloaded models.User
			require.NoError(t, testDB.DB.First(&reloaded, user.ID).Error)
			assert.Error(t, bcrypt.CompareHashAndPassword([]byte(reloaded.PasswordHash), []byte(testFixturePassword)))
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(reloaded.PasswordHash), []byte("BrandNewPass456!")))

			// The used OTP is recorded as a new row under the same correlation
			used, err := otpRepo.ByFilter(ctx, models.OTPVerificationFilter{
				UserID:  &user.ID,
				OTPType: utils.ToPtr(models.OTPTypePasswordReset),
				Status:  utils.ToPtr(models.OTPStatusUsed),
			}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, used, 1)
		})

		t.Run("InvalidOTPRejected", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			code := requestReset(t, user)

			wrong := "000000"
			if wrong == code {
				wrong = "000001"
			}

			_, err = flow.ResetPassword(ctx, &dto.ResetPasswordRequest{
				UserID:          user.ID,
				OTPCode:         wrong,
				NewPassword:     "BrandNewPass456!",
				ConfirmPassword: "BrandNewPass456!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidOTPCode(err))
		})

		t.Run("ResetInvalidatesExistingSessions", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			login, err := flow.Login(ctx, &dto.LoginRequest{
				Identifier: user.Email,
				Password:   testFixturePassword,
			}, metadata)
			require.NoError(t, err)

			code := requestReset(t, user)
			_, err = flow.ResetPassword(ctx, &dto.ResetPasswordRequest{
				UserID:          user.ID,
				OTPCode:         code,
				NewPassword:     "BrandNewPass456!",
				ConfirmPassword: "BrandNewPass456!",
			}, metadata)
			require.NoError(t, err)

			old, err := sessionRepo.BySessionToken(ctx, login.Session.SessionToken)
			require.NoError(t, err)
			assert.Nil(t, old)
		})

		return nil
	})
	require.NoError(t, err)
}

// Guards the masking format used in password reset responses.
func TestMaskPhoneNumber(t *testing.T) {
	masked := dto.MaskPhoneNumber("+447700900123")
	assert.True(t, strings.HasPrefix(masked, "+44"))
	assert.Contains(t, masked, "*")
	assert.NotContains(t, masked, "900123")

	// Short values pass through untouched
	assert.Equal(t, "12345", dto.MaskPhoneNumber("12345"))
}
