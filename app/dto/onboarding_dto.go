// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"encoding/json"
	"time"
)

// OnboardingIntentRequest represents the intent step answer
type OnboardingIntentRequest struct {
	PrimaryIntent string   `json:"primary_intent" validate:"required,max=100"`
	SpecificGoals []string `json:"specific_goals" validate:"omitempty,dive,max=100"`
}

// OnboardingProfileSetupRequest represents the profile setup step answer
type OnboardingProfileSetupRequest struct {
	DisplayName string   `json:"display_name" validate:"omitempty,max=120"`
	Bio         string   `json:"bio" validate:"omitempty,max=1000"`
	Interests   []string `json:"interests" validate:"omitempty,dive,max=100"`
}

// OnboardingStepResponse represents the response after saving an onboarding step
type OnboardingStepResponse struct {
	Message     string `json:"message"`
	QuestionKey string `json:"question_key"`

	// RecommendationsRefreshed reports whether saving this step also
	// regenerated the user's recommendation set. A false value after an
	// intent save means the answer was stored but the refresh failed.
	RecommendationsRefreshed bool `json:"recommendations_refreshed"`
}

// OnboardingResponseDTO represents one stored onboarding answer
type OnboardingResponseDTO struct {
	QuestionKey string          `json:"question_key"`
	Response    json.RawMessage `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OnboardingResponsesResponse represents the user's full onboarding answer log
type OnboardingResponsesResponse struct {
	Responses []OnboardingResponseDTO `json:"responses"`
}
