// Package models contains domain entities and business models for the community platform
package models

import (
	"time"

	"github.com/lib/pq"
)

// App is a recommendable feature/module of the platform. Catalog entries
// are administered through the back office and carry the eligibility and
// relevance metadata the recommendation scorer matches against.
type App struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Slug        string  `gorm:"size:100;not null;uniqueIndex:uk_apps_slug" json:"slug"`
	Name        string  `gorm:"size:120;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	// Empty set means the app is universal (suitable for every account type).
	SuitableForAccountTypes pq.StringArray `gorm:"type:text[]" json:"suitable_for_account_types"`

	// Empty string means no age restriction.
	AgeRestriction string `gorm:"size:30;default:''" json:"age_restriction"`

	RelevantIntents   pq.StringArray `gorm:"type:text[]" json:"relevant_intents"`
	RelevantInterests pq.StringArray `gorm:"type:text[]" json:"relevant_interests"`

	IsActive  *bool     `gorm:"default:true;index:idx_apps_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_apps_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (App) TableName() string {
	return "apps"
}

// Age restriction constants
const (
	AgeRestrictionNone       = ""
	AgeRestrictionAdultsOnly = "adults_only"
	AgeRestrictionTeensAndUp = "teens_and_up"
)

// AppFilter represents filter criteria for app catalog queries
type AppFilter struct {
	ID            *uint
	Slug          *string
	Name          *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsUniversal reports whether the app declares no account-type restriction.
func (a *App) IsUniversal() bool {
	return len(a.SuitableForAccountTypes) == 0
}

// SuitableFor reports whether the app may be offered to the given account type.
func (a *App) SuitableFor(accountTypeName string) bool {
	if a.IsUniversal() {
		return true
	}
	for _, t := range a.SuitableForAccountTypes {
		if t == accountTypeName {
			return true
		}
	}
	return false
}

// HasRelevantIntent reports whether the given intent token appears in the
// app's relevant intents.
func (a *App) HasRelevantIntent(intent string) bool {
	if intent == "" {
		return false
	}
	for _, t := range a.RelevantIntents {
		if t == intent {
			return true
		}
	}
	return false
}

// HasRelevantInterest reports whether the given interest token appears in
// the app's relevant interests.
func (a *App) HasRelevantInterest(interest string) bool {
	if interest == "" {
		return false
	}
	for _, t := range a.RelevantInterests {
		if t == interest {
			return true
		}
	}
	return false
}
