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

// OnboardingHandlerInterface defines the contract for onboarding handlers
type OnboardingHandlerInterface interface {
	SaveIntent(c fiber.Ctx) error
	SaveProfileSetup(c fiber.Ctx) error
	GetResponses(c fiber.Ctx) error
}

// OnboardingHandler handles onboarding question HTTP requests
type OnboardingHandler struct {
	flow      businessflow.OnboardingFlow
	validator *validator.Validate
}

func (h *OnboardingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OnboardingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NewOnboardingHandler(flow businessflow.OnboardingFlow) *OnboardingHandler {
	return &OnboardingHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// SaveIntent stores the user's intent answer and refreshes their recommendations
// @Summary Save intent answer
// @Description Store the authenticated user's primary intent and specific goals, then regenerate their recommendation set
// @Tags Onboarding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.OnboardingIntentRequest true "Intent answer"
// @Success 200 {object} dto.APIResponse{data=dto.OnboardingStepResponse} "Answer saved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/onboarding/intent [post]
func (h *OnboardingHandler) SaveIntent(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.OnboardingIntentRequest
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

	result, err := h.flow.SaveIntent(h.createRequestContext(c, "/api/v1/onboarding/intent"), userID, &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsPrimaryIntentRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Primary intent is required", "PRIMARY_INTENT_REQUIRED", nil)
		}

		log.Println("Saving intent answer failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save onboarding answer", "ONBOARDING_SAVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// SaveProfileSetup stores the user's profile setup answer
// @Summary Save profile setup answer
// @Description Store the authenticated user's display name, bio and interests
// @Tags Onboarding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.OnboardingProfileSetupRequest true "Profile setup answer"
// @Success 200 {object} dto.APIResponse{data=dto.OnboardingStepResponse} "Answer saved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/onboarding/profile-setup [post]
func (h *OnboardingHandler) SaveProfileSetup(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.OnboardingProfileSetupRequest
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

	result, err := h.flow.SaveProfileSetup(h.createRequestContext(c, "/api/v1/onboarding/profile-setup"), userID, &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}

		log.Println("Saving profile setup answer failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save onboarding answer", "ONBOARDING_SAVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetResponses returns the user's onboarding answer log
// @Summary List onboarding answers
// @Description Return the authenticated user's stored onboarding answers in insertion order
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.OnboardingResponsesResponse} "Answers retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/onboarding/responses [get]
func (h *OnboardingHandler) GetResponses(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.flow.GetResponses(h.createRequestContext(c, "/api/v1/onboarding/responses"), userID)
	if err != nil {
		log.Println("Listing onboarding answers failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list onboarding answers", "ONBOARDING_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Onboarding answers retrieved", result)
}

func (h *OnboardingHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
