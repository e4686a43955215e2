package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (86400 seconds = 24 hours)
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour

	// OTPExpiry is the time-to-live for OTP codes (5 minutes)
	OTPExpiry = 5 * time.Minute

	// OTPResendCooldown is the minimum wait between OTP resends
	OTPResendCooldown = 90 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Recommendation scoring constants. Weights are additive; eligibility
// gates (account type, age) are applied before any scoring.
const (
	// ScoreBaseUniversal is granted to apps with no account-type restriction
	ScoreBaseUniversal = 20

	// ScoreBaseAccountTypeMatch is granted to restricted apps whose
	// suitable account types include the user's
	ScoreBaseAccountTypeMatch = 50

	// ScorePrimaryIntentMatch is granted when the user's primary intent
	// appears in the app's relevant intents
	ScorePrimaryIntentMatch = 40

	// ScorePerGoalMatch is granted per specific goal found in the app's
	// relevant intents (uncapped)
	ScorePerGoalMatch = 10

	// ScorePerInterestMatch is granted per interest found in the app's
	// relevant interests (uncapped)
	ScorePerInterestMatch = 15

	// MaxRecommendationsPerUser caps how many scored apps are persisted
	MaxRecommendationsPerUser = 10
)
