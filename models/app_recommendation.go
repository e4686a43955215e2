// Package models contains domain entities and business models for the community platform
package models

import (
	"time"
)

// AppRecommendation is one row of a user's ranked recommendation set.
// A user has at most one active set at a time: regenerating replaces all
// of the user's rows inside a single transaction.
type AppRecommendation struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index:idx_app_recommendations_user_id" json:"user_id"`
	User   User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	AppID  uint `gorm:"not null;index:idx_app_recommendations_app_id" json:"app_id"`
	App    App  `gorm:"foreignKey:AppID;references:ID" json:"app,omitempty"`

	RecommendationScore int       `gorm:"not null" json:"recommendation_score"`
	ShownAt             time.Time `gorm:"not null" json:"shown_at"`

	Accepted   *bool      `gorm:"default:false;index:idx_app_recommendations_accepted" json:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

func (AppRecommendation) TableName() string {
	return "app_recommendations"
}

// AppRecommendationFilter represents filter criteria for recommendation queries
type AppRecommendationFilter struct {
	ID          *uint
	UserID      *uint
	AppID       *uint
	Accepted    *bool
	ShownAfter  *time.Time
	ShownBefore *time.Time
}

func (r *AppRecommendation) IsAccepted() bool {
	return r.Accepted != nil && *r.Accepted
}
