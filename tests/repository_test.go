package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	testingutil "github.com/soundroots/communityos/testing"
	"github.com/soundroots/communityos/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewUserRepository(testDB.DB)
		ctx := context.Background()

		t.Run("ByEmailAndByMobile", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			byEmail, err := repo.ByEmail(ctx, user.Email)
			require.NoError(t, err)
			require.NotNil(t, byEmail)
			assert.Equal(t, user.ID, byEmail.ID)
			assert.Equal(t, models.AccountTypeIndividual, byEmail.AccountType.TypeName)

			byMobile, err := repo.ByMobile(ctx, user.Mobile)
			require.NoError(t, err)
			require.NotNil(t, byMobile)
			assert.Equal(t, user.ID, byMobile.ID)

			missing, err := repo.ByEmail(ctx, "missing@example.com")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("UpdateVerificationStatus", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			now := utils.UTCNow()
			err = repo.UpdateVerificationStatus(ctx, user.ID, utils.ToPtr(true), nil, &now, nil)
			require.NoError(t, err)

			reloaded, err := repo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(reloaded.IsMobileVerified))
			require.NotNil(t, reloaded.MobileVerifiedAt)
			assert.False(t, utils.IsTrue(reloaded.IsEmailVerified))
		})

		t.Run("UpdateLastLogin", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			at := utils.UTCNow()
			require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

			reloaded, err := repo.ByID(ctx, user.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded.LastLoginAt)
			assert.WithinDuration(t, at, *reloaded.LastLoginAt, time.Second)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestOTPVerificationRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewOTPVerificationRepository(testDB.DB)
		ctx := context.Background()

		t.Run("ListActiveOTPsSkipsExpired", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			live, err := fixtures.CreateTestOTP(user.ID, models.OTPTypeMobile, "111111")
			require.NoError(t, err)
			_, err = fixtures.CreateExpiredOTP(user.ID)
			require.NoError(t, err)

			active, err := repo.ListActiveOTPs(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, live.ID, active[0].ID)
		})

		t.Run("ExpireOldOTPs", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			otp, err := fixtures.CreateTestOTP(user.ID, models.OTPTypeMobile, "222222")
			require.NoError(t, err)

			require.NoError(t, repo.ExpireOldOTPs(ctx, user.ID, models.OTPTypeMobile))

			reloaded, err := repo.ByID(ctx, otp.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OTPStatusExpired, reloaded.Status)
		})

		t.Run("ExpireStaleOTPs", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			stale, err := fixtures.CreateExpiredOTP(user.ID)
			require.NoError(t, err)
			fresh, err := fixtures.CreateTestOTP(user.ID, models.OTPTypeMobile, "333333")
			require.NoError(t, err)

			affected, err := repo.ExpireStaleOTPs(ctx, utils.UTCNow())
			require.NoError(t, err)
			assert.Equal(t, int64(1), affected)

			reloadedStale, err := repo.ByID(ctx, stale.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OTPStatusExpired, reloadedStale.Status)

			reloadedFresh, err := repo.ByID(ctx, fresh.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OTPStatusPending, reloadedFresh.Status)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUserSessionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewUserSessionRepository(testDB.DB)
		ctx := context.Background()

		t.Run("CleanupExpiredSessions", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(user.ID)
			require.NoError(t, err)

			// Backdate the session so cleanup sees it as expired
			require.NoError(t, testDB.DB.Model(&models.UserSession{}).
				Where("id = ?", session.ID).
				Update("expires_at", utils.UTCNow().Add(-time.Hour)).Error)

			affected, err := repo.CleanupExpiredSessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), affected)

			reloaded, err := repo.BySessionToken(ctx, session.SessionToken)
			require.NoError(t, err)
			assert.Nil(t, reloaded)
		})

		t.Run("ExpireAllUserSessions", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSession(user.ID)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSession(user.ID)
			require.NoError(t, err)

			require.NoError(t, repo.ExpireAllUserSessions(ctx, user.ID))

			active, err := repo.ListActiveSessionsByUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Empty(t, active)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAppRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewAppRepository(testDB.DB)
		ctx := context.Background()

		t.Run("BySlug", func(t *testing.T) {
			resetTables(t, testDB)

			created, err := fixtures.CreateTestApp(&models.App{Slug: "gig-finder", Name: "Gig Finder"})
			require.NoError(t, err)

			app, err := repo.BySlug(ctx, "gig-finder")
			require.NoError(t, err)
			require.NotNil(t, app)
			assert.Equal(t, created.ID, app.ID)

			missing, err := repo.BySlug(ctx, "does-not-exist")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("ListActiveSkipsInactive", func(t *testing.T) {
			resetTables(t, testDB)

			active, err := fixtures.CreateTestApp(&models.App{Slug: "active-app", Name: "Active App"})
			require.NoError(t, err)
			_, err = fixtures.CreateTestApp(&models.App{Slug: "retired-app", Name: "Retired App", IsActive: utils.ToPtr(false)})
			require.NoError(t, err)

			apps, err := repo.ListActive(ctx)
			require.NoError(t, err)
			require.Len(t, apps, 1)
			assert.Equal(t, active.ID, apps[0].ID)
		})

		t.Run("ByFilterOnAccountTypeArrays", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := fixtures.CreateTestApp(&models.App{
				Slug:                    "band-rooms",
				Name:                    "Band Rooms",
				SuitableForAccountTypes: []string{models.AccountTypeBand},
			})
			require.NoError(t, err)
			_, err = fixtures.CreateTestApp(&models.App{Slug: "open-mic", Name: "Open Mic"})
			require.NoError(t, err)

			apps, err := repo.ByFilter(ctx, models.AppFilter{IsActive: utils.ToPtr(true)}, "slug ASC", 0, 0)
			require.NoError(t, err)
			assert.Len(t, apps, 2)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAppRecommendationRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewAppRecommendationRepository(testDB.DB)
		ctx := context.Background()

		t.Run("DeleteByUserRemovesOnlyThatUser", func(t *testing.T) {
			resetTables(t, testDB)

			userA, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			userB, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			app, err := fixtures.CreateTestApp(&models.App{Slug: "shared-app", Name: "Shared App"})
			require.NoError(t, err)

			_, err = fixtures.CreateTestRecommendation(userA.ID, app.ID, 70)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecommendation(userB.ID, app.ID, 50)
			require.NoError(t, err)

			require.NoError(t, repo.DeleteByUser(ctx, userA.ID))

			remainingA, err := repo.ListByUser(ctx, userA.ID)
			require.NoError(t, err)
			assert.Empty(t, remainingA)

			remainingB, err := repo.ListByUser(ctx, userB.ID)
			require.NoError(t, err)
			assert.Len(t, remainingB, 1)
		})

		t.Run("MarkAccepted", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			app, err := fixtures.CreateTestApp(&models.App{Slug: "accept-me", Name: "Accept Me"})
			require.NoError(t, err)
			rec, err := fixtures.CreateTestRecommendation(user.ID, app.ID, 70)
			require.NoError(t, err)

			require.NoError(t, repo.MarkAccepted(ctx, rec.ID, utils.UTCNow()))

			reloaded, err := repo.ByID(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.IsAccepted())
			require.NotNil(t, reloaded.AcceptedAt)
		})

		t.Run("CountByApp", func(t *testing.T) {
			resetTables(t, testDB)

			userA, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			userB, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			app, err := fixtures.CreateTestApp(&models.App{Slug: "counted-app", Name: "Counted App"})
			require.NoError(t, err)

			recA, err := fixtures.CreateTestRecommendation(userA.ID, app.ID, 70)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecommendation(userB.ID, app.ID, 50)
			require.NoError(t, err)
			require.NoError(t, repo.MarkAccepted(ctx, recA.ID, utils.UTCNow()))

			total, err := repo.CountByApp(ctx, app.ID, false)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)

			accepted, err := repo.CountByApp(ctx, app.ID, true)
			require.NoError(t, err)
			assert.Equal(t, int64(1), accepted)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestOnboardingResponseRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewOnboardingResponseRepository(testDB.DB)
		ctx := context.Background()

		t.Run("LatestByQuestionKeyTakesLastRow", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			_, err = fixtures.SaveIntentResponse(user.ID, "learn", nil)
			require.NoError(t, err)
			second, err := fixtures.SaveIntentResponse(user.ID, "perform", []string{"gig"})
			require.NoError(t, err)

			latest, err := repo.LatestByQuestionKey(ctx, user.ID, models.QuestionKeyIntent)
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, second.ID, latest.ID)
		})

		t.Run("LatestByQuestionKeyMissingIsNil", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			latest, err := repo.LatestByQuestionKey(ctx, user.ID, models.QuestionKeyIntent)
			require.NoError(t, err)
			assert.Nil(t, latest)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestWithTransactionRollback(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewAppRepository(testDB.DB)
		ctx := context.Background()

		resetTables(t, testDB)

		boom := errors.New("boom")
		err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
			if err := repo.Save(txCtx, &models.App{Slug: "rolled-back", Name: "Rolled Back"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		// The insert inside the failed transaction is gone
		app, err := repo.BySlug(ctx, "rolled-back")
		require.NoError(t, err)
		assert.Nil(t, app)

		return nil
	})
	require.NoError(t, err)
}
