// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// AdminAppDTO represents a catalog entry with its full administration metadata
type AdminAppDTO struct {
	ID                      uint      `json:"id"`
	Slug                    string    `json:"slug"`
	Name                    string    `json:"name"`
	Description             *string   `json:"description,omitempty"`
	SuitableForAccountTypes []string  `json:"suitable_for_account_types"`
	AgeRestriction          string    `json:"age_restriction"`
	RelevantIntents         []string  `json:"relevant_intents"`
	RelevantInterests       []string  `json:"relevant_interests"`
	IsActive                bool      `json:"is_active"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// AdminCreateAppRequest represents the request to add a catalog entry.
// An empty suitable_for_account_types list marks the app universal; an
// empty age_restriction means no age gate.
type AdminCreateAppRequest struct {
	Slug                    string   `json:"slug" validate:"required,max=100"`
	Name                    string   `json:"name" validate:"required,max=120"`
	Description             *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	SuitableForAccountTypes []string `json:"suitable_for_account_types" validate:"omitempty,dive,oneof=individual band organisation"`
	AgeRestriction          string   `json:"age_restriction" validate:"omitempty,oneof=adults_only teens_and_up"`
	RelevantIntents         []string `json:"relevant_intents" validate:"omitempty,dive,max=100"`
	RelevantInterests       []string `json:"relevant_interests" validate:"omitempty,dive,max=100"`
	IsActive                bool     `json:"is_active"`
}

// AdminUpdateAppRequest represents a partial update of a catalog entry.
// Nil fields are left unchanged. The slug is immutable after creation.
type AdminUpdateAppRequest struct {
	Name                    *string  `json:"name,omitempty" validate:"omitempty,max=120"`
	Description             *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	SuitableForAccountTypes []string `json:"suitable_for_account_types,omitempty" validate:"omitempty,dive,oneof=individual band organisation"`
	AgeRestriction          *string  `json:"age_restriction,omitempty" validate:"omitempty,oneof='' adults_only teens_and_up"`
	RelevantIntents         []string `json:"relevant_intents,omitempty" validate:"omitempty,dive,max=100"`
	RelevantInterests       []string `json:"relevant_interests,omitempty" validate:"omitempty,dive,max=100"`
	IsActive                *bool    `json:"is_active,omitempty"`
}

// AdminListAppsRequest represents catalog pagination parameters
type AdminListAppsRequest struct {
	Page     int   `json:"page" validate:"required,gt=0"`
	PageSize int   `json:"page_size" validate:"required,gt=0,lte=100"`
	IsActive *bool `json:"is_active,omitempty"`
}

// AdminListAppsResponse represents one page of the catalog
type AdminListAppsResponse struct {
	Items []AdminAppDTO `json:"items"`
	Total int64         `json:"total"`
}
