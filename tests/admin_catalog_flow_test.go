package tests

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

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

func newAdminCatalogFlow(db *gorm.DB) (businessflow.AdminAppCatalogFlow, repository.AppRecommendationRepository) {
	appRepo := repository.NewAppRepository(db)
	recommendationRepo := repository.NewAppRecommendationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	return businessflow.NewAdminAppCatalogFlow(appRepo, recommendationRepo, auditRepo, db), recommendationRepo
}

func TestAdminCreateApp(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, _ := newAdminCatalogFlow(testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("CreatesEntry", func(t *testing.T) {
			resetTables(t, testDB)

			created, err := flow.CreateApp(ctx, &dto.AdminCreateAppRequest{
				Slug:                    "session-swap",
				Name:                    "Session Swap",
				Description:             utils.ToPtr("Swap session musicians"),
				SuitableForAccountTypes: []string{models.AccountTypeBand},
				AgeRestriction:          models.AgeRestrictionAdultsOnly,
				RelevantIntents:         []string{"collaborate"},
				RelevantInterests:       []string{"jazz"},
				IsActive:                true,
			}, metadata)
			require.NoError(t, err)
			assert.NotZero(t, created.ID)
			assert.Equal(t, "session-swap", created.Slug)
			assert.Equal(t, models.AgeRestrictionAdultsOnly, created.AgeRestriction)
			assert.True(t, created.IsActive)
		})

		t.Run("DuplicateSlugRejected", func(t *testing.T) {
			resetTables(t, testDB)

			req := &dto.AdminCreateAppRequest{Slug: "same-slug", Name: "First", IsActive: true}
			_, err := flow.CreateApp(ctx, req, metadata)
			require.NoError(t, err)

			_, err = flow.CreateApp(ctx, &dto.AdminCreateAppRequest{Slug: "same-slug", Name: "Second", IsActive: true}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAppSlugAlreadyExists(err))
		})

		t.Run("InvalidAgeRestrictionRejected", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := flow.CreateApp(ctx, &dto.AdminCreateAppRequest{
				Slug:           "bad-age",
				Name:           "Bad Age",
				AgeRestriction: "over_21",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidAgeRestriction(err))
		})

		t.Run("InvalidAccountTypeRejected", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := flow.CreateApp(ctx, &dto.AdminCreateAppRequest{
				Slug:                    "bad-type",
				Name:                    "Bad Type",
				SuitableForAccountTypes: []string{"label"},
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidAccountType(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdminUpdateApp(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, _ := newAdminCatalogFlow(testDB.DB)
		ctx := context.Background()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("PartialUpdateLeavesOtherFields", func(t *testing.T) {
			resetTables(t, testDB)

			app, err := fixtures.CreateTestApp(&models.App{
				Slug:            "update-me",
				Name:            "Before",
				RelevantIntents: []string{"perform"},
			})
			require.NoError(t, err)

			updated, err := flow.UpdateApp(ctx, app.ID, &dto.AdminUpdateAppRequest{
				Name: utils.ToPtr("After"),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "After", updated.Name)
			assert.Equal(t, "update-me", updated.Slug)
			assert.Equal(t, []string{"perform"}, updated.RelevantIntents)
		})

		t.Run("DeactivationSticks", func(t *testing.T) {
			resetTables(t, testDB)

			app, err := fixtures.CreateTestApp(&models.App{Slug: "retire-me", Name: "Retire Me"})
			require.NoError(t, err)

			updated, err := flow.UpdateApp(ctx, app.ID, &dto.AdminUpdateAppRequest{
				IsActive: utils.ToPtr(false),
			}, metadata)
			require.NoError(t, err)
			assert.False(t, updated.IsActive)

			appRepo := repository.NewAppRepository(testDB.DB)
			active, err := appRepo.ListActive(ctx)
			require.NoError(t, err)
			assert.Empty(t, active)
		})

		t.Run("EmptyUpdateRejected", func(t *testing.T) {
			resetTables(t, testDB)

			app, err := fixtures.CreateTestApp(&models.App{Slug: "no-change", Name: "No Change"})
			require.NoError(t, err)

			_, err = flow.UpdateApp(ctx, app.ID, &dto.AdminUpdateAppRequest{}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAppUpdateRequired(err))
		})

		t.Run("UnknownAppRejected", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := flow.UpdateApp(ctx, 999999, &dto.AdminUpdateAppRequest{
				Name: utils.ToPtr("Ghost"),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAppNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdminListApps(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, _ := newAdminCatalogFlow(testDB.DB)
		ctx := context.Background()

		t.Run("Paginates", func(t *testing.T) {
			resetTables(t, testDB)

			for i := 0; i < 5; i++ {
				_, err := fixtures.CreateTestApp(&models.App{})
				require.NoError(t, err)
			}

			page1, err := flow.ListApps(ctx, &dto.AdminListAppsRequest{Page: 1, PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(5), page1.Total)
			assert.Len(t, page1.Items, 2)

			page3, err := flow.ListApps(ctx, &dto.AdminListAppsRequest{Page: 3, PageSize: 2})
			require.NoError(t, err)
			assert.Len(t, page3.Items, 1)
		})

		t.Run("FiltersByActive", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := fixtures.CreateTestApp(&models.App{Slug: "live", Name: "Live"})
			require.NoError(t, err)
			_, err = fixtures.CreateTestApp(&models.App{Slug: "dead", Name: "Dead", IsActive: utils.ToPtr(false)})
			require.NoError(t, err)

			resp, err := flow.ListApps(ctx, &dto.AdminListAppsRequest{Page: 1, PageSize: 10, IsActive: utils.ToPtr(true)})
			require.NoError(t, err)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, "live", resp.Items[0].Slug)
		})

		t.Run("RejectsBadPagination", func(t *testing.T) {
			resetTables(t, testDB)

			_, err := flow.ListApps(ctx, &dto.AdminListAppsRequest{Page: 0, PageSize: 10})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidPage(err))

			_, err = flow.ListApps(ctx, &dto.AdminListAppsRequest{Page: 1, PageSize: 500})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidPageSize(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdminExportAppsXLSX(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, recommendationRepo := newAdminCatalogFlow(testDB.DB)
		ctx := context.Background()

		resetTables(t, testDB)

		user, err := fixtures.CreateTestUser(models.AccountTypeIndividual)
		require.NoError(t, err)
		app, err := fixtures.CreateTestApp(&models.App{Slug: "exported-app", Name: "Exported App"})
		require.NoError(t, err)
		rec, err := fixtures.CreateTestRecommendation(user.ID, app.ID, 70)
		require.NoError(t, err)
		require.NoError(t, recommendationRepo.MarkAccepted(ctx, rec.ID, utils.UTCNow()))

		filename, data, err := flow.ExportAppsXLSX(ctx)
		require.NoError(t, err)
		assert.Equal(t, "app_catalog.xlsx", filename)
		require.NotEmpty(t, data)

		xl, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer func() { _ = xl.Close() }()

		rows, err := xl.GetRows("apps")
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "id", rows[0][0])
		assert.Equal(t, "slug", rows[0][1])
		assert.Equal(t, "exported-app", rows[1][1])
		assert.Equal(t, "1", rows[1][9])  // recommended count
		assert.Equal(t, "1", rows[1][10]) // accepted count

		return nil
	})
	require.NoError(t, err)
}
