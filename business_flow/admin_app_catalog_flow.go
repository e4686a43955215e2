// Package businessflow contains the core business logic and use cases for onboarding and recommendation workflows
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/soundroots/communityos/app/dto"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	"github.com/soundroots/communityos/utils"
)

// AdminAppCatalogFlow manages the administered app catalog that the
// recommendation scorer reads from
type AdminAppCatalogFlow interface {
	CreateApp(ctx context.Context, req *dto.AdminCreateAppRequest, metadata *ClientMetadata) (*dto.AdminAppDTO, error)
	UpdateApp(ctx context.Context, appID uint, req *dto.AdminUpdateAppRequest, metadata *ClientMetadata) (*dto.AdminAppDTO, error)
	GetApp(ctx context.Context, appID uint) (*dto.AdminAppDTO, error)
	ListApps(ctx context.Context, req *dto.AdminListAppsRequest) (*dto.AdminListAppsResponse, error)
	// ExportAppsXLSX renders the full catalog with per-app recommendation
	// counts as an Excel workbook and returns the filename and raw bytes
	ExportAppsXLSX(ctx context.Context) (string, []byte, error)
}

// AdminAppCatalogFlowImpl implements the catalog administration flow
type AdminAppCatalogFlowImpl struct {
	appRepo            repository.AppRepository
	recommendationRepo repository.AppRecommendationRepository
	auditRepo          repository.AuditLogRepository
	db                 *gorm.DB
}

func NewAdminAppCatalogFlow(
	appRepo repository.AppRepository,
	recommendationRepo repository.AppRecommendationRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) AdminAppCatalogFlow {
	return &AdminAppCatalogFlowImpl{
		appRepo:            appRepo,
		recommendationRepo: recommendationRepo,
		auditRepo:          auditRepo,
		db:                 db,
	}
}

// CreateApp adds a new entry to the catalog
func (cf *AdminAppCatalogFlowImpl) CreateApp(ctx context.Context, req *dto.AdminCreateAppRequest, metadata *ClientMetadata) (*dto.AdminAppDTO, error) {
	if err := validateCatalogFields(req.Slug, req.Name, req.AgeRestriction, req.SuitableForAccountTypes); err != nil {
		return nil, NewBusinessError("APP_VALIDATION_FAILED", "App validation failed", err)
	}

	existing, err := cf.appRepo.BySlug(ctx, req.Slug)
	if err != nil {
		return nil, NewBusinessError("APP_LOOKUP_FAILED", "Failed to lookup app", err)
	}
	if existing != nil {
		return nil, NewBusinessError("APP_SLUG_EXISTS", "App slug already exists", ErrAppSlugAlreadyExists)
	}

	app := &models.App{
		Slug:                    req.Slug,
		Name:                    req.Name,
		Description:             req.Description,
		SuitableForAccountTypes: req.SuitableForAccountTypes,
		AgeRestriction:          req.AgeRestriction,
		RelevantIntents:         req.RelevantIntents,
		RelevantInterests:       req.RelevantInterests,
		IsActive:                utils.ToPtr(req.IsActive),
	}

	err = repository.WithTransaction(ctx, cf.db, func(txCtx context.Context) error {
		return cf.appRepo.Save(txCtx, app)
	})
	if err != nil {
		errMsg := fmt.Sprintf("App catalog create failed: %s", err.Error())
		_ = cf.createAuditLog(ctx, models.AuditActionAppCatalogEntryCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("APP_CREATE_FAILED", "Failed to create app", err)
	}

	msg := fmt.Sprintf("App catalog entry created: %s (%d)", app.Slug, app.ID)
	_ = cf.createAuditLog(ctx, models.AuditActionAppCatalogEntryCreated, msg, true, nil, metadata)

	result := toAdminAppDTO(app)
	return &result, nil
}

// UpdateApp mutates an existing catalog entry. Only the provided fields
// change; the recommendation sets already stored for users are untouched
// until their next regeneration.
func (cf *AdminAppCatalogFlowImpl) UpdateApp(ctx context.Context, appID uint, req *dto.AdminUpdateAppRequest, metadata *ClientMetadata) (*dto.AdminAppDTO, error) {
	if req.Name == nil && req.Description == nil && req.IsActive == nil &&
		req.SuitableForAccountTypes == nil && req.AgeRestriction == nil &&
		req.RelevantIntents == nil && req.RelevantInterests == nil {
		return nil, NewBusinessError("APP_VALIDATION_FAILED", "App validation failed", ErrAppUpdateRequired)
	}

	app, err := cf.appRepo.ByID(ctx, appID)
	if err != nil {
		return nil, NewBusinessError("APP_LOOKUP_FAILED", "Failed to lookup app", err)
	}
	if app == nil {
		return nil, NewBusinessError("APP_NOT_FOUND", "App not found", ErrAppNotFound)
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, NewBusinessError("APP_VALIDATION_FAILED", "App validation failed", ErrAppNameRequired)
		}
		app.Name = *req.Name
	}
	if req.Description != nil {
		app.Description = req.Description
	}
	if req.IsActive != nil {
		app.IsActive = req.IsActive
	}
	if req.SuitableForAccountTypes != nil {
		if err := validateAccountTypes(req.SuitableForAccountTypes); err != nil {
			return nil, NewBusinessError("APP_VALIDATION_FAILED", "App validation failed", err)
		}
		app.SuitableForAccountTypes = req.SuitableForAccountTypes
	}
	if req.AgeRestriction != nil {
		if err := validateAgeRestriction(*req.AgeRestriction); err != nil {
			return nil, NewBusinessError("APP_VALIDATION_FAILED", "App validation failed", err)
		}
		app.AgeRestriction = *req.AgeRestriction
	}
	if req.RelevantIntents != nil {
		app.RelevantIntents = req.RelevantIntents
	}
	if req.RelevantInterests != nil {
		app.RelevantInterests = req.RelevantInterests
	}

	err = repository.WithTransaction(ctx, cf.db, func(txCtx context.Context) error {
		return cf.appRepo.Update(txCtx, app)
	})
	if err != nil {
		errMsg := fmt.Sprintf("App catalog update failed: %s", err.Error())
		_ = cf.createAuditLog(ctx, models.AuditActionAppCatalogEntryUpdated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("APP_UPDATE_FAILED", "Failed to update app", err)
	}

	msg := fmt.Sprintf("App catalog entry updated: %s (%d)", app.Slug, app.ID)
	_ = cf.createAuditLog(ctx, models.AuditActionAppCatalogEntryUpdated, msg, true, nil, metadata)

	result := toAdminAppDTO(app)
	return &result, nil
}

// GetApp returns one catalog entry by ID
func (cf *AdminAppCatalogFlowImpl) GetApp(ctx context.Context, appID uint) (*dto.AdminAppDTO, error) {
	app, err := cf.appRepo.ByID(ctx, appID)
	if err != nil {
		return nil, NewBusinessError("APP_LOOKUP_FAILED", "Failed to lookup app", err)
	}
	if app == nil {
		return nil, NewBusinessError("APP_NOT_FOUND", "App not found", ErrAppNotFound)
	}

	result := toAdminAppDTO(app)
	return &result, nil
}

// ListApps returns a page of the catalog
func (cf *AdminAppCatalogFlowImpl) ListApps(ctx context.Context, req *dto.AdminListAppsRequest) (*dto.AdminListAppsResponse, error) {
	page := req.Page
	if page < 1 {
		return nil, NewBusinessError("APP_LIST_VALIDATION_FAILED", "App list validation failed", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("APP_LIST_VALIDATION_FAILED", "App list validation failed", ErrInvalidPageSize)
	}

	filter := models.AppFilter{
		IsActive: req.IsActive,
	}

	total, err := cf.appRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("APP_LIST_FAILED", "Failed to list apps", err)
	}

	apps, err := cf.appRepo.ByFilter(ctx, filter, "id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("APP_LIST_FAILED", "Failed to list apps", err)
	}

	items := make([]dto.AdminAppDTO, 0, len(apps))
	for _, app := range apps {
		items = append(items, toAdminAppDTO(app))
	}

	return &dto.AdminListAppsResponse{
		Items: items,
		Total: total,
	}, nil
}

// ExportAppsXLSX writes the whole catalog to one worksheet and annotates
// each entry with how often it has been recommended and accepted
func (cf *AdminAppCatalogFlowImpl) ExportAppsXLSX(ctx context.Context) (string, []byte, error) {
	apps, err := cf.appRepo.ByFilter(ctx, models.AppFilter{}, "id ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("APP_EXPORT_FAILED", "Failed to read app catalog", err)
	}

	// Create workbook
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	name := "apps"
	xl.SetSheetName(xl.GetSheetName(0), name)

	header := []string{"id", "slug", "name", "description", "is_active", "suitable_for_account_types", "age_restriction", "relevant_intents", "relevant_interests", "recommended_count", "accepted_count", "created_at", "updated_at"}
	_ = xl.SetSheetRow(name, "A1", &header)

	for ri, app := range apps {
		recommended, err := cf.recommendationRepo.CountByApp(ctx, app.ID, false)
		if err != nil {
			return "", nil, NewBusinessError("APP_EXPORT_FAILED", "Failed to count recommendations", err)
		}
		accepted, err := cf.recommendationRepo.CountByApp(ctx, app.ID, true)
		if err != nil {
			return "", nil, NewBusinessError("APP_EXPORT_FAILED", "Failed to count accepted recommendations", err)
		}

		description := ""
		if app.Description != nil {
			description = *app.Description
		}

		record := []string{
			strconv.FormatUint(uint64(app.ID), 10),
			app.Slug,
			app.Name,
			description,
			strconv.FormatBool(utils.IsTrue(app.IsActive)),
			strings.Join(app.SuitableForAccountTypes, ","),
			app.AgeRestriction,
			strings.Join(app.RelevantIntents, ","),
			strings.Join(app.RelevantInterests, ","),
			strconv.FormatInt(recommended, 10),
			strconv.FormatInt(accepted, 10),
			app.CreatedAt.Format("2006-01-02 15:04:05"),
			app.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cellRef := fmt.Sprintf("A%d", ri+2)
		_ = xl.SetSheetRow(name, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := "app_catalog.xlsx"
	return filename, buf.Bytes(), nil
}

// Validation helpers

func validateCatalogFields(slug, name, ageRestriction string, accountTypes []string) error {
	if strings.TrimSpace(slug) == "" {
		return ErrAppSlugRequired
	}
	if strings.TrimSpace(name) == "" {
		return ErrAppNameRequired
	}
	if err := validateAgeRestriction(ageRestriction); err != nil {
		return err
	}
	return validateAccountTypes(accountTypes)
}

func validateAgeRestriction(ageRestriction string) error {
	switch ageRestriction {
	case models.AgeRestrictionNone, models.AgeRestrictionAdultsOnly, models.AgeRestrictionTeensAndUp:
		return nil
	default:
		return ErrInvalidAgeRestriction
	}
}

func validateAccountTypes(accountTypes []string) error {
	for _, t := range accountTypes {
		switch t {
		case models.AccountTypeIndividual, models.AccountTypeBand, models.AccountTypeOrganisation:
		default:
			return ErrInvalidAccountType
		}
	}
	return nil
}

func toAdminAppDTO(app *models.App) dto.AdminAppDTO {
	return dto.AdminAppDTO{
		ID:                      app.ID,
		Slug:                    app.Slug,
		Name:                    app.Name,
		Description:             app.Description,
		SuitableForAccountTypes: app.SuitableForAccountTypes,
		AgeRestriction:          app.AgeRestriction,
		RelevantIntents:         app.RelevantIntents,
		RelevantInterests:       app.RelevantInterests,
		IsActive:                utils.IsTrue(app.IsActive),
		CreatedAt:               app.CreatedAt,
		UpdatedAt:               app.UpdatedAt,
	}
}

func (cf *AdminAppCatalogFlowImpl) createAuditLog(ctx context.Context, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return cf.auditRepo.Save(ctx, audit)
}
