// Package businessflow contains the core business logic and use cases for onboarding and recommendation workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/soundroots/communityos/app/dto"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	"github.com/soundroots/communityos/utils"
)

// OnboardingFlow handles the post-signup onboarding question steps
type OnboardingFlow interface {
	SaveIntent(ctx context.Context, userID uint, req *dto.OnboardingIntentRequest, metadata *ClientMetadata) (*dto.OnboardingStepResponse, error)
	SaveProfileSetup(ctx context.Context, userID uint, req *dto.OnboardingProfileSetupRequest, metadata *ClientMetadata) (*dto.OnboardingStepResponse, error)
	GetResponses(ctx context.Context, userID uint) (*dto.OnboardingResponsesResponse, error)
}

// OnboardingFlowImpl implements the onboarding business flow
type OnboardingFlowImpl struct {
	userRepo           repository.UserRepository
	onboardingRepo     repository.OnboardingResponseRepository
	auditRepo          repository.AuditLogRepository
	recommendationFlow RecommendationFlow
	db                 *gorm.DB
}

// NewOnboardingFlow creates a new onboarding flow instance
func NewOnboardingFlow(
	userRepo repository.UserRepository,
	onboardingRepo repository.OnboardingResponseRepository,
	auditRepo repository.AuditLogRepository,
	recommendationFlow RecommendationFlow,
	db *gorm.DB,
) OnboardingFlow {
	return &OnboardingFlowImpl{
		userRepo:           userRepo,
		onboardingRepo:     onboardingRepo,
		auditRepo:          auditRepo,
		recommendationFlow: recommendationFlow,
		db:                 db,
	}
}

// SaveIntent stores the user's intent answer and then refreshes the user's
// recommendation set. The refresh runs after the answer has committed:
// recommendations are an enrichment, and a failed refresh must never fail
// the user-facing save.
func (of *OnboardingFlowImpl) SaveIntent(ctx context.Context, userID uint, req *dto.OnboardingIntentRequest, metadata *ClientMetadata) (*dto.OnboardingStepResponse, error) {
	if req.PrimaryIntent == "" {
		return nil, NewBusinessError("ONBOARDING_VALIDATION_FAILED", "Onboarding validation failed", ErrPrimaryIntentRequired)
	}

	payload, err := json.Marshal(models.IntentResponse{
		PrimaryIntent: req.PrimaryIntent,
		SpecificGoals: req.SpecificGoals,
	})
	if err != nil {
		return nil, NewBusinessError("ONBOARDING_ENCODE_FAILED", "Failed to encode onboarding answer", err)
	}

	if err := of.saveResponse(ctx, userID, models.QuestionKeyIntent, payload, metadata); err != nil {
		return nil, err
	}

	// Best-effort enrichment after the commit above. Errors are logged to
	// the audit trail and swallowed.
	refreshed := true
	if err := of.recommendationFlow.GenerateForUser(ctx, userID); err != nil {
		refreshed = false
		errMsg := fmt.Sprintf("Recommendation refresh failed after intent save: %s", err.Error())
		_ = of.createAuditLog(ctx, userID, models.AuditActionRecommendationsFailed, errMsg, false, &errMsg, metadata)
	}

	return &dto.OnboardingStepResponse{
		Message:                  "Onboarding step saved",
		QuestionKey:              models.QuestionKeyIntent,
		RecommendationsRefreshed: refreshed,
	}, nil
}

// SaveProfileSetup stores the user's profile setup answer
func (of *OnboardingFlowImpl) SaveProfileSetup(ctx context.Context, userID uint, req *dto.OnboardingProfileSetupRequest, metadata *ClientMetadata) (*dto.OnboardingStepResponse, error) {
	payload, err := json.Marshal(models.ProfileSetupResponse{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Interests:   req.Interests,
	})
	if err != nil {
		return nil, NewBusinessError("ONBOARDING_ENCODE_FAILED", "Failed to encode onboarding answer", err)
	}

	if err := of.saveResponse(ctx, userID, models.QuestionKeyProfileSetup, payload, metadata); err != nil {
		return nil, err
	}

	return &dto.OnboardingStepResponse{
		Message:     "Onboarding step saved",
		QuestionKey: models.QuestionKeyProfileSetup,
	}, nil
}

// GetResponses returns the user's full onboarding answer log in insertion
// order. Callers that need one answer per question key should take the last
// row seen for each key.
func (of *OnboardingFlowImpl) GetResponses(ctx context.Context, userID uint) (*dto.OnboardingResponsesResponse, error) {
	rows, err := of.onboardingRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("ONBOARDING_LIST_FAILED", "Failed to list onboarding responses", err)
	}

	items := make([]dto.OnboardingResponseDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.OnboardingResponseDTO{
			QuestionKey: row.QuestionKey,
			Response:    row.Response,
			CreatedAt:   row.CreatedAt,
		})
	}

	return &dto.OnboardingResponsesResponse{
		Responses: items,
	}, nil
}

// saveResponse appends one row to the onboarding answer log. Earlier rows
// for the same question key are kept; readers resolve by insertion order.
func (of *OnboardingFlowImpl) saveResponse(ctx context.Context, userID uint, questionKey string, payload json.RawMessage, metadata *ClientMetadata) error {
	err := repository.WithTransaction(ctx, of.db, func(txCtx context.Context) error {
		user, err := of.userRepo.ByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		return of.onboardingRepo.Save(txCtx, &models.OnboardingResponse{
			UserID:      userID,
			QuestionKey: questionKey,
			Response:    payload,
		})
	})

	if err != nil {
		errMsg := fmt.Sprintf("Onboarding step %q failed: %s", questionKey, err.Error())
		_ = of.createAuditLog(ctx, userID, models.AuditActionOnboardingStepFailed, errMsg, false, &errMsg, metadata)

		return NewBusinessError("ONBOARDING_SAVE_FAILED", "Failed to save onboarding step", err)
	}

	msg := fmt.Sprintf("Onboarding step %q saved for user %d", questionKey, userID)
	_ = of.createAuditLog(ctx, userID, models.AuditActionOnboardingStepSaved, msg, true, nil, metadata)

	return nil
}

func (of *OnboardingFlowImpl) createAuditLog(ctx context.Context, userID uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       &userID,
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

	return of.auditRepo.Save(ctx, audit)
}
