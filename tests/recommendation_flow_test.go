package tests

import (
	"context"
	"testing"

	"github.com/soundroots/communityos/app/dto"
	businessflow "github.com/soundroots/communityos/business_flow"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	testingutil "github.com/soundroots/communityos/testing"
	"github.com/soundroots/communityos/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRecommendationFlow(db *gorm.DB) (businessflow.RecommendationFlow, repository.AppRecommendationRepository) {
	userRepo := repository.NewUserRepository(db)
	onboardingRepo := repository.NewOnboardingResponseRepository(db)
	appRepo := repository.NewAppRepository(db)
	recommendationRepo := repository.NewAppRecommendationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	flow := businessflow.NewRecommendationFlow(userRepo, onboardingRepo, appRepo, recommendationRepo, auditRepo, db)
	return flow, recommendationRepo
}

func TestGenerateRecommendations(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, recommendationRepo := newRecommendationFlow(testDB.DB)
		ctx := context.Background()

		t.Run("UniversalAndTypeMatchBaseScores", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			universal, err := fixtures.CreateTestApp(&models.App{Slug: "forum", Name: "Forum"})
			require.NoError(t, err)
			typed, err := fixtures.CreateTestApp(&models.App{
				Slug:                    "practice-log",
				Name:                    "Practice Log",
				SuitableForAccountTypes: []string{models.AccountTypeIndividual},
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 2)

			// Type match outranks universal
			assert.Equal(t, typed.ID, recs[0].AppID)
			assert.Equal(t, utils.ScoreBaseAccountTypeMatch, recs[0].RecommendationScore)
			assert.Equal(t, universal.ID, recs[1].AppID)
			assert.Equal(t, utils.ScoreBaseUniversal, recs[1].RecommendationScore)
		})

		t.Run("UnsuitableAccountTypeExcluded", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeBand)
			require.NoError(t, err)

			_, err = fixtures.CreateTestApp(&models.App{
				Slug:                    "solo-coach",
				Name:                    "Solo Coach",
				SuitableForAccountTypes: []string{models.AccountTypeIndividual},
			})
			require.NoError(t, err)
			kept, err := fixtures.CreateTestApp(&models.App{
				Slug:                    "gig-planner",
				Name:                    "Gig Planner",
				SuitableForAccountTypes: []string{models.AccountTypeBand, models.AccountTypeOrganisation},
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, kept.ID, recs[0].AppID)
		})

		t.Run("AdultsOnlyExcludedForMinors", func(t *testing.T) {
			resetTables(t, testDB)

			minor, err := fixtures.CreateTestUserWithAge(models.AccountTypeIndividual, 16)
			require.NoError(t, err)
			adult, err := fixtures.CreateTestUserWithAge(models.AccountTypeIndividual, 30)
			require.NoError(t, err)

			adultsOnly, err := fixtures.CreateTestApp(&models.App{
				Slug:           "late-night-venues",
				Name:           "Late Night Venues",
				AgeRestriction: models.AgeRestrictionAdultsOnly,
			})
			require.NoError(t, err)
			teensAndUp, err := fixtures.CreateTestApp(&models.App{
				Slug:           "open-mic-finder",
				Name:           "Open Mic Finder",
				AgeRestriction: models.AgeRestrictionTeensAndUp,
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, minor.ID))
			require.NoError(t, flow.GenerateForUser(ctx, adult.ID))

			minorRecs, err := recommendationRepo.ListByUser(ctx, minor.ID)
			require.NoError(t, err)
			require.Len(t, minorRecs, 1)
			assert.Equal(t, teensAndUp.ID, minorRecs[0].AppID)

			adultRecs, err := recommendationRepo.ListByUser(ctx, adult.ID)
			require.NoError(t, err)
			require.Len(t, adultRecs, 2)
			appIDs := []uint{adultRecs[0].AppID, adultRecs[1].AppID}
			assert.Contains(t, appIDs, adultsOnly.ID)
		})

		t.Run("UserWithoutDateOfBirthTreatedAsAdult", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeOrganisation)
			require.NoError(t, err)

			adultsOnly, err := fixtures.CreateTestApp(&models.App{
				Slug:           "licensed-bar-tools",
				Name:           "Licensed Bar Tools",
				AgeRestriction: models.AgeRestrictionAdultsOnly,
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, adultsOnly.ID, recs[0].AppID)
		})

		t.Run("IntentAndGoalBonusesAreUncapped", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			_, err = fixtures.SaveIntentResponse(user.ID, "collaborate", []string{"find_bandmates", "record_demo", "book_gigs"})
			require.NoError(t, err)

			app, err := fixtures.CreateTestApp(&models.App{
				Slug:            "collab-hub",
				Name:            "Collab Hub",
				RelevantIntents: []string{"collaborate", "find_bandmates", "record_demo", "book_gigs"},
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, app.ID, recs[0].AppID)

			// 20 universal base + 40 primary intent + 3x10 goal matches
			expected := utils.ScoreBaseUniversal + utils.ScorePrimaryIntentMatch + 3*utils.ScorePerGoalMatch
			assert.Equal(t, expected, recs[0].RecommendationScore)
		})

		t.Run("InterestBonusesAreUncapped", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			_, err = fixtures.SaveProfileSetupResponse(user.ID, "Jamie", []string{"jazz", "blues", "funk", "soul"})
			require.NoError(t, err)

			_, err = fixtures.CreateTestApp(&models.App{
				Slug:              "listening-rooms",
				Name:              "Listening Rooms",
				RelevantInterests: []string{"jazz", "blues", "funk", "soul"},
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 1)

			expected := utils.ScoreBaseUniversal + 4*utils.ScorePerInterestMatch
			assert.Equal(t, expected, recs[0].RecommendationScore)
		})

		t.Run("TieBreakByAppIDAscending", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			first, err := fixtures.CreateTestApp(&models.App{Slug: "app-a", Name: "App A"})
			require.NoError(t, err)
			second, err := fixtures.CreateTestApp(&models.App{Slug: "app-b", Name: "App B"})
			require.NoError(t, err)
			third, err := fixtures.CreateTestApp(&models.App{Slug: "app-c", Name: "App C"})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 3)

			// All score 20; order falls back to app ID ascending
			assert.Equal(t, first.ID, recs[0].AppID)
			assert.Equal(t, second.ID, recs[1].AppID)
			assert.Equal(t, third.ID, recs[2].AppID)
		})

		t.Run("SetCappedAtTopTen", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			for i := 0; i < utils.MaxRecommendationsPerUser+3; i++ {
				_, err := fixtures.CreateTestApp(&models.App{})
				require.NoError(t, err)
			}

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Len(t, recs, utils.MaxRecommendationsPerUser)
		})

		t.Run("RegenerateReplacesOldSet", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			app, err := fixtures.CreateTestApp(&models.App{Slug: "keeper", Name: "Keeper"})
			require.NoError(t, err)
			stale, err := fixtures.CreateTestApp(&models.App{Slug: "deactivated-later", Name: "Deactivated Later"})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 2)

			// Deactivate one app, regenerate, and verify the old row is gone
			require.NoError(t, testDB.DB.Model(&models.App{}).Where("id = ?", stale.ID).Update("is_active", false).Error)
			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err = recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, app.ID, recs[0].AppID)
		})

		t.Run("MissingUserIsSilentNoOp", func(t *testing.T) {
			resetTables(t, testDB)

			err := flow.GenerateForUser(ctx, 999999)
			assert.NoError(t, err)
		})

		t.Run("DeactivatedUserIsSilentNoOp", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			_, err = fixtures.CreateTestApp(&models.App{Slug: "forum", Name: "Forum"})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 1)

			// Deactivating the user stops regeneration without error; the
			// stored set is left untouched
			require.NoError(t, testDB.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

			_, err = fixtures.CreateTestApp(&models.App{Slug: "second-app", Name: "Second App"})
			require.NoError(t, err)
			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			after, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, after, 1)
			assert.Equal(t, recs[0].ID, after[0].ID)
		})

		t.Run("RerunWithSameInputsKeepsRanking", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)
			_, err = fixtures.SaveIntentResponse(user.ID, "perform", []string{"book_gigs"})
			require.NoError(t, err)

			_, err = fixtures.CreateTestApp(&models.App{Slug: "stage-time", Name: "Stage Time", RelevantIntents: []string{"perform", "book_gigs"}})
			require.NoError(t, err)
			_, err = fixtures.CreateTestApp(&models.App{Slug: "forum", Name: "Forum"})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			first, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, first, 2)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			second, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, second, len(first))

			// Same facts and catalog produce the same (app, score) pairs
			for i := range first {
				assert.Equal(t, first[i].AppID, second[i].AppID)
				assert.Equal(t, first[i].RecommendationScore, second[i].RecommendationScore)
			}
		})

		t.Run("LatestDuplicateAnswerWins", func(t *testing.T) {
			resetTables(t, testDB)

			user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
			require.NoError(t, err)

			// First answer, then an edited one: only the newest row may score
			_, err = fixtures.SaveIntentResponse(user.ID, "learn", nil)
			require.NoError(t, err)
			_, err = fixtures.SaveIntentResponse(user.ID, "perform", nil)
			require.NoError(t, err)

			learnApp, err := fixtures.CreateTestApp(&models.App{
				Slug:            "lesson-library",
				Name:            "Lesson Library",
				RelevantIntents: []string{"learn"},
			})
			require.NoError(t, err)
			performApp, err := fixtures.CreateTestApp(&models.App{
				Slug:            "stage-time",
				Name:            "Stage Time",
				RelevantIntents: []string{"perform"},
			})
			require.NoError(t, err)

			require.NoError(t, flow.GenerateForUser(ctx, user.ID))

			recs, err := recommendationRepo.ListByUser(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, recs, 2)

			assert.Equal(t, performApp.ID, recs[0].AppID)
			assert.Equal(t, utils.ScoreBaseUniversal+utils.ScorePrimaryIntentMatch, recs[0].RecommendationScore)
			assert.Equal(t, learnApp.ID, recs[1].AppID)
			assert.Equal(t, utils.ScoreBaseUniversal, recs[1].RecommendationScore)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListAndAcceptRecommendations(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, _ := newRecommendationFlow(testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
		require.NoError(t, err)
		otherUser, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
		require.NoError(t, err)

		app, err := fixtures.CreateTestApp(&models.App{Slug: "forum", Name: "Forum"})
		require.NoError(t, err)

		rec, err := fixtures.CreateTestRecommendation(user.ID, app.ID, 70)
		require.NoError(t, err)
		lower, err := fixtures.CreateTestRecommendation(user.ID, app.ID, 20)
		require.NoError(t, err)

		t.Run("ListReturnsRankOrder", func(t *testing.T) {
			resp, err := flow.ListForUser(ctx, user.ID, metadata)
			require.NoError(t, err)
			require.Len(t, resp.Recommendations, 2)
			assert.Equal(t, rec.ID, resp.Recommendations[0].ID)
			assert.Equal(t, lower.ID, resp.Recommendations[1].ID)
			assert.Equal(t, app.Slug, resp.Recommendations[0].App.Slug)
			assert.False(t, resp.Recommendations[0].Accepted)
		})

		t.Run("ListForUserWithoutSetIsEmpty", func(t *testing.T) {
			resp, err := flow.ListForUser(ctx, otherUser.ID, metadata)
			require.NoError(t, err)
			assert.Empty(t, resp.Recommendations)
		})

		t.Run("AcceptMarksRecommendation", func(t *testing.T) {
			resp, err := flow.Accept(ctx, user.ID, &dto.RecommendationAcceptRequest{RecommendationID: rec.ID}, metadata)
			require.NoError(t, err)
			assert.True(t, resp.Accepted)

			listed, err := flow.ListForUser(ctx, user.ID, metadata)
			require.NoError(t, err)
			assert.True(t, listed.Recommendations[0].Accepted)
			assert.NotNil(t, listed.Recommendations[0].AcceptedAt)
		})

		t.Run("AcceptUnknownRecommendation", func(t *testing.T) {
			_, err := flow.Accept(ctx, user.ID, &dto.RecommendationAcceptRequest{RecommendationID: 999999}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsRecommendationNotFound(err))
		})

		t.Run("AcceptAnotherUsersRecommendation", func(t *testing.T) {
			_, err := flow.Accept(ctx, otherUser.ID, &dto.RecommendationAcceptRequest{RecommendationID: rec.ID}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsRecommendationAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}
