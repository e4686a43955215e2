// Package models contains domain entities and business models for the community platform
package models

import (
	"encoding/json"
	"time"
)

// OnboardingResponse is one stored answer to a step of the signup flow.
// The table is an append-only log: there is no uniqueness constraint on
// (user_id, question_key), so a user who edits a step leaves the old row
// behind. Readers resolve duplicates by taking the most recent row by
// insertion order (highest id).
type OnboardingResponse struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index:idx_onboarding_responses_user_id" json:"user_id"`
	User        User            `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	QuestionKey string          `gorm:"size:100;not null;index:idx_onboarding_responses_question_key" json:"question_key"`
	Response    json.RawMessage `gorm:"type:jsonb;not null" json:"response"`
	CreatedAt   time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_onboarding_responses_created_at" json:"created_at"`
}

func (OnboardingResponse) TableName() string {
	return "onboarding_responses"
}

// Question key constants
const (
	QuestionKeyAccountType  = "account_type"
	QuestionKeyProfileSetup = "profile_setup"
	QuestionKeyIntent       = "intent"
)

// IntentResponse is the payload stored under the "intent" question key.
type IntentResponse struct {
	PrimaryIntent string   `json:"primary_intent"`
	SpecificGoals []string `json:"specific_goals,omitempty"`
}

// ProfileSetupResponse is the payload stored under the "profile_setup" question key.
type ProfileSetupResponse struct {
	DisplayName string   `json:"display_name,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

// OnboardingResponseFilter represents filter criteria for onboarding response queries
type OnboardingResponseFilter struct {
	ID            *uint
	UserID        *uint
	QuestionKey   *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
