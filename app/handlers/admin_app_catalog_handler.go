// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/soundroots/communityos/app/dto"
	businessflow "github.com/soundroots/communityos/business_flow"
	"github.com/soundroots/communityos/utils"
)

// AdminAppCatalogHandlerInterface defines the contract for catalog administration handlers
type AdminAppCatalogHandlerInterface interface {
	CreateApp(c fiber.Ctx) error
	UpdateApp(c fiber.Ctx) error
	GetApp(c fiber.Ctx) error
	ListApps(c fiber.Ctx) error
	ExportApps(c fiber.Ctx) error
}

// AdminAppCatalogHandler implements AdminAppCatalogHandlerInterface
type AdminAppCatalogHandler struct {
	flow      businessflow.AdminAppCatalogFlow
	validator *validator.Validate
}

func (h *AdminAppCatalogHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminAppCatalogHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NewAdminAppCatalogHandler(flow businessflow.AdminAppCatalogFlow) AdminAppCatalogHandlerInterface {
	return &AdminAppCatalogHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// CreateApp adds a new catalog entry
// @Summary Create app
// @Description Add a new entry to the app catalog
// @Tags Admin App Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AdminCreateAppRequest true "App data"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAppDTO} "App created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Slug already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/apps [post]
func (h *AdminAppCatalogHandler) CreateApp(c fiber.Ctx) error {
	var req dto.AdminCreateAppRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	// Get client information
	ipAddress := c.IP()
	userAgent := c.Get("User-Agent")
	metadata := businessflow.NewClientMetadata(ipAddress, userAgent)

	result, err := h.flow.CreateApp(h.createRequestContext(c, "/api/v1/admin/apps"), &req, metadata)
	if err != nil {
		if businessflow.IsAppSlugAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "App slug already exists", "APP_SLUG_EXISTS", nil)
		}
		if businessflow.IsAppSlugRequired(err) || businessflow.IsAppNameRequired(err) ||
			businessflow.IsInvalidAgeRestriction(err) || businessflow.IsInvalidAccountType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "App validation failed", "APP_VALIDATION_FAILED", nil)
		}

		log.Println("App create failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create app", "APP_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "App created", result)
}

// UpdateApp mutates an existing catalog entry
// @Summary Update app
// @Description Update fields of an existing app catalog entry
// @Tags Admin App Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "App ID"
// @Param request body dto.AdminUpdateAppRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAppDTO} "App updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "App not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/apps/{id} [put]
func (h *AdminAppCatalogHandler) UpdateApp(c fiber.Ctx) error {
	appID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || appID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid app ID", "INVALID_APP_ID", nil)
	}

	var req dto.AdminUpdateAppRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	// Get client information
	ipAddress := c.IP()
	userAgent := c.Get("User-Agent")
	metadata := businessflow.NewClientMetadata(ipAddress, userAgent)

	result, err := h.flow.UpdateApp(h.createRequestContext(c, "/api/v1/admin/apps/:id"), uint(appID), &req, metadata)
	if err != nil {
		if businessflow.IsAppNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "App not found", "APP_NOT_FOUND", nil)
		}
		if businessflow.IsAppUpdateRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", "APP_UPDATE_REQUIRED", nil)
		}
		if businessflow.IsAppNameRequired(err) || businessflow.IsInvalidAgeRestriction(err) ||
			businessflow.IsInvalidAccountType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "App validation failed", "APP_VALIDATION_FAILED", nil)
		}

		log.Println("App update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update app", "APP_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "App updated", result)
}

// GetApp returns a single catalog entry
// @Summary Get app
// @Description Return one app catalog entry by ID
// @Tags Admin App Catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "App ID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAppDTO} "App retrieved"
// @Failure 404 {object} dto.APIResponse "App not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/apps/{id} [get]
func (h *AdminAppCatalogHandler) GetApp(c fiber.Ctx) error {
	appID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || appID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid app ID", "INVALID_APP_ID", nil)
	}

	result, err := h.flow.GetApp(h.createRequestContext(c, "/api/v1/admin/apps/:id"), uint(appID))
	if err != nil {
		if businessflow.IsAppNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "App not found", "APP_NOT_FOUND", nil)
		}

		log.Println("App lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to lookup app", "APP_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "App retrieved", result)
}

// ListApps returns a page of the catalog
// @Summary List apps
// @Description Return a page of the app catalog, optionally filtered by active state
// @Tags Admin App Catalog
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Param is_active query bool false "Filter by active state"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListAppsResponse} "Apps retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/apps [get]
func (h *AdminAppCatalogHandler) ListApps(c fiber.Ctx) error {
	req := dto.AdminListAppsRequest{Page: 1, PageSize: 20}

	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page", "INVALID_PAGE", nil)
		}
		req.Page = page
	}
	if v := c.Query("page_size"); v != "" {
		pageSize, err := strconv.Atoi(v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page size", "INVALID_PAGE_SIZE", nil)
		}
		req.PageSize = pageSize
	}
	if v := c.Query("is_active"); v != "" {
		isActive, err := strconv.ParseBool(v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid is_active filter", "INVALID_FILTER", nil)
		}
		req.IsActive = utils.ToPtr(isActive)
	}

	result, err := h.flow.ListApps(h.createRequestContext(c, "/api/v1/admin/apps"), &req)
	if err != nil {
		if businessflow.IsInvalidPage(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page", "INVALID_PAGE", nil)
		}
		if businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page size", "INVALID_PAGE_SIZE", nil)
		}

		log.Println("App list failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list apps", "APP_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Apps retrieved", result)
}

// ExportApps downloads the full catalog as an Excel workbook
// @Summary Export apps
// @Description Download the full app catalog with recommendation counts as an XLSX file
// @Tags Admin App Catalog
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} binary "XLSX file"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/apps/export [get]
func (h *AdminAppCatalogHandler) ExportApps(c fiber.Ctx) error {
	filename, data, err := h.flow.ExportAppsXLSX(h.createRequestContext(c, "/api/v1/admin/apps/export"))
	if err != nil {
		log.Println("App export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export apps", "APP_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

func (h *AdminAppCatalogHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 60*time.Second)
}
