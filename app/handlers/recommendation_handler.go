// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/soundroots/communityos/app/dto"
	businessflow "github.com/soundroots/communityos/business_flow"
)

// RecommendationHandlerInterface defines the contract for recommendation handlers
type RecommendationHandlerInterface interface {
	List(c fiber.Ctx) error
	Accept(c fiber.Ctx) error
}

// RecommendationHandler handles recommendation HTTP requests
type RecommendationHandler struct {
	flow      businessflow.RecommendationFlow
	validator *validator.Validate
}

func (h *RecommendationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RecommendationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NewRecommendationHandler(flow businessflow.RecommendationFlow) *RecommendationHandler {
	return &RecommendationHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// List returns the authenticated user's current recommendation set
// @Summary List recommendations
// @Description Return the stored recommendations for the authenticated user, ordered by score
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RecommendationListResponse} "Recommendations retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/recommendations [get]
func (h *RecommendationHandler) List(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	// Get client information
	ipAddress := c.IP()
	userAgent := c.Get("User-Agent")
	metadata := businessflow.NewClientMetadata(ipAddress, userAgent)

	result, err := h.flow.ListForUser(h.createRequestContext(c, "/api/v1/recommendations"), userID, metadata)
	if err != nil {
		log.Println("Listing recommendations failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list recommendations", "RECOMMENDATION_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recommendations retrieved", result)
}

// Accept marks one of the user's recommendations as accepted
// @Summary Accept recommendation
// @Description Mark one of the authenticated user's recommendations as accepted
// @Tags Recommendations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RecommendationAcceptRequest true "Recommendation to accept"
// @Success 200 {object} dto.APIResponse{data=dto.RecommendationAcceptResponse} "Recommendation accepted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Recommendation belongs to another user"
// @Failure 404 {object} dto.APIResponse "Recommendation not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/recommendations/accept [post]
func (h *RecommendationHandler) Accept(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.RecommendationAcceptRequest
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

	result, err := h.flow.Accept(h.createRequestContext(c, "/api/v1/recommendations/accept"), userID, &req, metadata)
	if err != nil {
		if businessflow.IsRecommendationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Recommendation not found", "RECOMMENDATION_NOT_FOUND", nil)
		}
		if businessflow.IsRecommendationAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Recommendation belongs to another user", "RECOMMENDATION_ACCESS_DENIED", nil)
		}

		log.Println("Accepting recommendation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to accept recommendation", "RECOMMENDATION_ACCEPT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *RecommendationHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
