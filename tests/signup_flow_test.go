package tests

import (
	"context"
	"encoding/json"
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

type signupTestEnv struct {
	flow           businessflow.SignupFlow
	userRepo       repository.UserRepository
	otpRepo        repository.OTPVerificationRepository
	sessionRepo    repository.UserSessionRepository
	auditRepo      repository.AuditLogRepository
	onboardingRepo repository.OnboardingResponseRepository
}

func newSignupFlow(t *testing.T, db *gorm.DB) *signupTestEnv {
	t.Helper()

	userRepo := repository.NewUserRepository(db)
	accountTypeRepo := repository.NewAccountTypeRepository(db)
	otpRepo := repository.NewOTPVerificationRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	onboardingRepo := repository.NewOnboardingResponseRepository(db)

	tokenService, err := services.NewTokenService(
		15*time.Minute, 7*24*time.Hour,
		"communityos-test", "communityos-api",
		false, "", "", "test-secret-key-for-signup-tests",
	)
	require.NoError(t, err)

	notificationSvc := services.NewNotificationService(
		services.NewMockSMSProvider(),
		services.NewMockEmailProvider(),
	)

	flow := businessflow.NewSignupFlow(
		userRepo, accountTypeRepo, otpRepo, sessionRepo, auditRepo, onboardingRepo,
		tokenService, notificationSvc, nil, db,
	)

	return &signupTestEnv{
		flow:           flow,
		userRepo:       userRepo,
		otpRepo:        otpRepo,
		sessionRepo:    sessionRepo,
		auditRepo:      auditRepo,
		onboardingRepo: onboardingRepo,
	}
}

func validSignupRequest(accountType string) *dto.SignupRequest {
	req := &dto.SignupRequest{
		AccountType:     accountType,
		FirstName:       "Alex",
		LastName:        "Reed",
		Mobile:          "+447700900123",
		Email:           "alex.reed@example.com",
		Password:        "SecurePass123!",
		ConfirmPassword: "SecurePass123!",
	}

	switch accountType {
	case models.AccountTypeIndividual:
		req.DateOfBirth = utils.ToPtr(time.Date(1995, 6, 15, 0, 0, 0, 0, time.UTC))
	case models.AccountTypeBand:
		req.OrganisationName = utils.ToPtr("The Night Signals")
		req.City = utils.ToPtr("Manchester")
	case models.AccountTypeOrganisation:
		req.OrganisationName = utils.ToPtr("Roundhouse Venue Ltd")
		req.City = utils.ToPtr("London")
	}

	return req
}

func TestSignup(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newSignupFlow(t, testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("IndividualSignupCreatesUserOTPAndAccountTypeAnswer", func(t *testing.T) {
			resetTables(t, testDB)

			resp, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeIndividual), metadata)
			require.NoError(t, err)
			assert.True(t, resp.OTPSent)
			assert.Equal(t, "+447****0123", resp.OTPTarget)

			user, err := env.userRepo.ByID(ctx, resp.UserID)
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, "alex.reed@example.com", user.Email)
			assert.False(t, utils.IsTrue(user.IsMobileVerified))
			require.NotNil(t, user.DateOfBirth)

			// Password is stored hashed
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("SecurePass123!")))

			// A pending mobile OTP exists
			otps, err := env.otpRepo.ListActiveOTPs(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, otps, 1)
			assert.Equal(t, models.OTPTypeMobile, otps[0].OTPType)
			assert.Equal(t, models.OTPStatusPending, otps[0].Status)
			assert.Len(t, otps[0].OTPCode, 6)

			// The chosen account type is recorded as the first onboarding answer
			row, err := env.onboardingRepo.LatestByQuestionKey(ctx, user.ID, models.QuestionKeyAccountType)
			require.NoError(t, err)
			require.NotNil(t, row)

			var answer map[string]string
			require.NoError(t, json.Unmarshal(row.Response, &answer))
			assert.Equal(t, models.AccountTypeIndividual, answer["account_type"])
		})

		t.Run("BandSignupKeepsOrganisationFields", func(t *testing.T) {
			resetTables(t, testDB)

			resp, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeBand), metadata)
			require.NoError(t, err)

			user, err := env.userRepo.ByID(ctx, resp.UserID)
			require.NoError(t, err)
			require.NotNil(t, user.OrganisationName)
			assert.Equal(t, "The Night Signals", *user.OrganisationName)
			require.NotNil(t, user.City)
			assert.Equal(t, "Manchester", *user.City)
		})

		t.Run("IndividualWithoutDateOfBirthRejected", func(t *testing.T) {
			resetTables(t, testDB)

			req := validSignupRequest(models.AccountTypeIndividual)
			req.DateOfBirth = nil

			_, err := env.flow.Signup(ctx, req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsDateOfBirthRequired(err))
		})

		t.Run("BandWithoutOrganisationFieldsRejected", func(t *testing.T) {
			resetTables(t, testDB)

			req := validSignupRequest(models.AccountTypeBand)
			req.OrganisationName = nil

			_, err := env.flow.Signup(ctx, req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsOrganisationFieldsRequired(err))
		})

		t.Run("DuplicateEmailRejected", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeIndividual), metadata)
			require.NoError(t, err)

			req := validSignupRequest(models.AccountTypeIndividual)
			req.Mobile = "+447700900999"

			_, err = env.flow.Signup(ctx, req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailAlreadyExists(err))
		})

		t.Run("DuplicateMobileRejected", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeIndividual), metadata)
			require.NoError(t, err)

			req := validSignupRequest(models.AccountTypeIndividual)
			req.Email = "second@example.com"

			_, err = env.flow.Signup(ctx, req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsMobileAlreadyExists(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestVerifyOTP(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newSignupFlow(t, testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		signupAndFetchOTP := func(t *testing.T) (uint, string) {
			t.Helper()

			resp, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeIndividual), metadata)
			require.NoError(t, err)

			otps, err := env.otpRepo.ListActiveOTPs(ctx, resp.UserID)
			require.NoError(t, err)
			require.Len(t, otps, 1)

			return resp.UserID, otps[0].OTPCode
		}

		t.Run("CorrectCodeCompletesSignup", func(t *testing.T) {
			resetTables(t, testDB)

			userID, code := signupAndFetchOTP(t)

			resp, err := env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  userID,
				OTPCode: code,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Token)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.Equal(t, models.AccountTypeIndividual, resp.User.AccountType)

			user, err := env.userRepo.ByID(ctx, userID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(user.IsMobileVerified))
			require.NotNil(t, user.MobileVerifiedAt)

			// A session row exists for the issued access token
			session, err := env.sessionRepo.BySessionToken(ctx, resp.Token)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, userID, session.UserID)
		})

		t.Run("WrongCodeAppendsFailedAttempt", func(t *testing.T) {
			resetTables(t, testDB)

			userID, code := signupAndFetchOTP(t)

			wrong := "000000"
			if wrong == code {
				wrong = "000001"
			}

			_, err := env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  userID,
				OTPCode: wrong,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidOTPCode(err))

			// The failed attempt is a new row sharing the correlation ID
			rows, err := env.otpRepo.ByFilter(ctx, models.OTPVerificationFilter{UserID: &userID}, "id ASC", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, models.OTPStatusPending, rows[0].Status)
			assert.Equal(t, models.OTPStatusFailed, rows[1].Status)
			assert.Equal(t, rows[0].CorrelationID, rows[1].CorrelationID)
			assert.Equal(t, rows[0].AttemptsCount+1, rows[1].AttemptsCount)
		})

		t.Run("ExpiredOTPRejected", func(t *testing.T) {
			resetTables(t, testDB)

			fixtures := testingutil.NewTestFixtures(testDB)
			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			expired, err := fixtures.CreateExpiredOTP(user.ID)
			require.NoError(t, err)

			_, err = env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  user.ID,
				OTPCode: expired.OTPCode,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsNoValidOTPFound(err))
		})

		t.Run("AlreadyVerifiedRejected", func(t *testing.T) {
			resetTables(t, testDB)

			userID, code := signupAndFetchOTP(t)

			_, err := env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  userID,
				OTPCode: code,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.NoError(t, err)

			_, err = env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  userID,
				OTPCode: code,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAlreadyVerified(err))
		})

		t.Run("UnknownUserRejected", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  999999,
				OTPCode: "123456",
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsUserNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestResendOTP(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newSignupFlow(t, testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("ExpiresOldOTPAndIssuesNewOne", func(t *testing.T) {
			resetTables(t, testDB)

			signupResp, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeIndividual), metadata)
			require.NoError(t, err)

			first, err := env.otpRepo.ListActiveOTPs(ctx, signupResp.UserID)
			require.NoError(t, err)
			require.Len(t, first, 1)

			resp, err := env.flow.ResendOTP(ctx, &dto.OTPResendRequest{
				UserID:  signupResp.UserID,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.NoError(t, err)
			assert.True(t, resp.OTPSent)
			assert.True(t, strings.HasPrefix(resp.MaskedOTPTarget, "+447"))
			assert.Contains(t, resp.MaskedOTPTarget, "****")

			// Only the fresh OTP remains pending
			active, err := env.otpRepo.ListActiveOTPs(ctx, signupResp.UserID)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.NotEqual(t, first[0].ID, active[0].ID)

			old, err := env.otpRepo.ByID(ctx, first[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.OTPStatusExpired, old.Status)
		})

		t.Run("AlreadyVerifiedUserRejected", func(t *testing.T) {
			resetTables(t, testDB)

			signupResp, err := env.flow.Signup(ctx, validSignupRequest(models.AccountTypeIndividual), metadata)
			require.NoError(t, err)

			otps, err := env.otpRepo.ListActiveOTPs(ctx, signupResp.UserID)
			require.NoError(t, err)
			_, err = env.flow.VerifyOTP(ctx, &dto.OTPVerificationRequest{
				UserID:  signupResp.UserID,
				OTPCode: otps[0].OTPCode,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.NoError(t, err)

			_, err = env.flow.ResendOTP(ctx, &dto.OTPResendRequest{
				UserID:  signupResp.UserID,
				OTPType: models.OTPTypeMobile,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAlreadyVerified(err))
		})

		return nil
	})
	require.NoError(t, err)
}
