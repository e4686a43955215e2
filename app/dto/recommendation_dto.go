// Package dto contains Data Transfer Objects for API request and response structures
package dto

// AppDTO represents a catalog entry as exposed to end users
type AppDTO struct {
	ID             uint    `json:"id"`
	Slug           string  `json:"slug"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	AgeRestriction string  `json:"age_restriction,omitempty"`
}

// RecommendationDTO represents one stored recommendation for a user
type RecommendationDTO struct {
	ID         uint    `json:"id"`
	App        AppDTO  `json:"app"`
	Score      int     `json:"score"`
	ShownAt    string  `json:"shown_at"`
	Accepted   bool    `json:"accepted"`
	AcceptedAt *string `json:"accepted_at,omitempty"`
}

// RecommendationListResponse represents the user's current recommendation set
type RecommendationListResponse struct {
	Recommendations []RecommendationDTO `json:"recommendations"`
}

// RecommendationAcceptRequest represents the request to accept a recommendation
type RecommendationAcceptRequest struct {
	RecommendationID uint `json:"recommendation_id" validate:"required,gt=0"`
}

// RecommendationAcceptResponse represents the response after accepting a recommendation
type RecommendationAcceptResponse struct {
	Message  string `json:"message"`
	Accepted bool   `json:"accepted"`
}
