package tests

import (
	"testing"
	"time"

	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/utils"
	"github.com/stretchr/testify/assert"
)

func TestUserIsMinor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("NoDateOfBirthIsAdult", func(t *testing.T) {
		user := &models.User{}
		assert.False(t, user.IsMinor(now))
	})

	t.Run("DayBeforeEighteenthBirthday", func(t *testing.T) {
		dob := now.AddDate(-18, 0, 1)
		user := &models.User{DateOfBirth: &dob}
		assert.True(t, user.IsMinor(now))
	})

	t.Run("OnEighteenthBirthday", func(t *testing.T) {
		dob := now.AddDate(-18, 0, 0)
		user := &models.User{DateOfBirth: &dob}
		assert.False(t, user.IsMinor(now))
	})

	t.Run("WellOverEighteen", func(t *testing.T) {
		dob := now.AddDate(-30, 0, 0)
		user := &models.User{DateOfBirth: &dob}
		assert.False(t, user.IsMinor(now))
	})
}

func TestUserAccountTypeHelpers(t *testing.T) {
	individual := &models.User{AccountType: models.AccountType{TypeName: models.AccountTypeIndividual}}
	band := &models.User{AccountType: models.AccountType{TypeName: models.AccountTypeBand}}
	organisation := &models.User{AccountType: models.AccountType{TypeName: models.AccountTypeOrganisation}}

	assert.True(t, individual.IsIndividual())
	assert.False(t, individual.RequiresOrganisationFields())

	assert.True(t, band.IsBand())
	assert.True(t, band.RequiresOrganisationFields())

	assert.True(t, organisation.IsOrganisation())
	assert.True(t, organisation.RequiresOrganisationFields())
}

func TestAppSuitability(t *testing.T) {
	t.Run("NoRestrictionIsUniversal", func(t *testing.T) {
		app := &models.App{}
		assert.True(t, app.IsUniversal())
		assert.True(t, app.SuitableFor(models.AccountTypeIndividual))
		assert.True(t, app.SuitableFor(models.AccountTypeBand))
	})

	t.Run("RestrictedToListedTypes", func(t *testing.T) {
		app := &models.App{SuitableForAccountTypes: []string{models.AccountTypeBand}}
		assert.False(t, app.IsUniversal())
		assert.True(t, app.SuitableFor(models.AccountTypeBand))
		assert.False(t, app.SuitableFor(models.AccountTypeIndividual))
	})
}

func TestAppRelevanceTokens(t *testing.T) {
	app := &models.App{
		RelevantIntents:   []string{"perform", "collaborate"},
		RelevantInterests: []string{"jazz"},
	}

	assert.True(t, app.HasRelevantIntent("perform"))
	assert.False(t, app.HasRelevantIntent("learn"))
	assert.True(t, app.HasRelevantInterest("jazz"))
	assert.False(t, app.HasRelevantInterest("metal"))

	// Empty tokens never match, even against empty lists
	assert.False(t, app.HasRelevantIntent(""))
	assert.False(t, app.HasRelevantInterest(""))
}

func TestOTPVerificationState(t *testing.T) {
	t.Run("PendingUnexpiredCanAttempt", func(t *testing.T) {
		otp := &models.OTPVerification{
			Status:        models.OTPStatusPending,
			AttemptsCount: 0,
			MaxAttempts:   3,
			ExpiresAt:     time.Now().Add(5 * time.Minute),
		}
		assert.False(t, otp.IsExpired())
		assert.True(t, otp.IsPending())
		assert.True(t, otp.CanAttempt())
	})

	t.Run("ExpiredCannotAttempt", func(t *testing.T) {
		otp := &models.OTPVerification{
			Status:      models.OTPStatusPending,
			MaxAttempts: 3,
			ExpiresAt:   time.Now().Add(-time.Minute),
		}
		assert.True(t, otp.IsExpired())
		assert.False(t, otp.CanAttempt())
	})

	t.Run("ExhaustedAttemptsCannotAttempt", func(t *testing.T) {
		otp := &models.OTPVerification{
			Status:        models.OTPStatusPending,
			AttemptsCount: 3,
			MaxAttempts:   3,
			ExpiresAt:     time.Now().Add(5 * time.Minute),
		}
		assert.False(t, otp.CanAttempt())
	})

	t.Run("VerifiedIsNotPending", func(t *testing.T) {
		otp := &models.OTPVerification{
			Status:      models.OTPStatusVerified,
			MaxAttempts: 3,
			ExpiresAt:   time.Now().Add(5 * time.Minute),
		}
		assert.True(t, otp.IsVerified())
		assert.False(t, otp.CanAttempt())
	})
}

func TestUserSessionValidity(t *testing.T) {
	t.Run("ActiveUnexpiredIsValid", func(t *testing.T) {
		session := &models.UserSession{
			IsActive:  utils.ToPtr(true),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		assert.True(t, session.IsValid())
	})

	t.Run("InactiveIsInvalid", func(t *testing.T) {
		session := &models.UserSession{
			IsActive:  utils.ToPtr(false),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		assert.False(t, session.IsValid())
	})

	t.Run("ExpiredIsInvalid", func(t *testing.T) {
		session := &models.UserSession{
			IsActive:  utils.ToPtr(true),
			ExpiresAt: time.Now().Add(-time.Hour),
		}
		assert.True(t, session.IsExpired())
		assert.False(t, session.IsValid())
	})
}

func TestAuditLogHelpers(t *testing.T) {
	failed := &models.AuditLog{
		Action:  models.AuditActionLoginFailed,
		Success: utils.ToPtr(false),
	}
	assert.True(t, failed.IsFailed())
	assert.True(t, failed.IsSecurityEvent())

	ordinary := &models.AuditLog{
		Action:  models.AuditActionOnboardingStepSaved,
		Success: utils.ToPtr(true),
	}
	assert.False(t, ordinary.IsFailed())
	assert.False(t, ordinary.IsSecurityEvent())
}

func TestAppRecommendationAccepted(t *testing.T) {
	rec := &models.AppRecommendation{}
	assert.False(t, rec.IsAccepted())

	rec.Accepted = utils.ToPtr(false)
	assert.False(t, rec.IsAccepted())

	rec.Accepted = utils.ToPtr(true)
	assert.True(t, rec.IsAccepted())
}
