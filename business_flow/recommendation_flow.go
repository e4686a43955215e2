// Package businessflow contains the core business logic and use cases for onboarding and recommendation workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/soundroots/communityos/app/dto"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	"github.com/soundroots/communityos/utils"
)

var (
	recommendationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "communityos_recommendation_runs_total",
		Help: "Total recommendation generation runs by outcome",
	}, []string{"outcome"})

	recommendationRowsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "communityos_recommendation_rows_persisted_total",
		Help: "Total recommendation rows written across all runs",
	})
)

// RecommendationFlow produces, serves and mutates per-user app recommendation sets
type RecommendationFlow interface {
	// GenerateForUser recomputes and atomically replaces the user's
	// recommendation set. A missing user is a silent no-op. Storage errors
	// propagate to the caller, which is expected to log and continue.
	GenerateForUser(ctx context.Context, userID uint) error
	ListForUser(ctx context.Context, userID uint, metadata *ClientMetadata) (*dto.RecommendationListResponse, error)
	Accept(ctx context.Context, userID uint, req *dto.RecommendationAcceptRequest, metadata *ClientMetadata) (*dto.RecommendationAcceptResponse, error)
}

// RecommendationFlowImpl implements the recommendation business flow
type RecommendationFlowImpl struct {
	userRepo           repository.UserRepository
	onboardingRepo     repository.OnboardingResponseRepository
	appRepo            repository.AppRepository
	recommendationRepo repository.AppRecommendationRepository
	auditRepo          repository.AuditLogRepository
	db                 *gorm.DB
}

// NewRecommendationFlow creates a new recommendation flow instance
func NewRecommendationFlow(
	userRepo repository.UserRepository,
	onboardingRepo repository.OnboardingResponseRepository,
	appRepo repository.AppRepository,
	recommendationRepo repository.AppRecommendationRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) RecommendationFlow {
	return &RecommendationFlowImpl{
		userRepo:           userRepo,
		onboardingRepo:     onboardingRepo,
		appRepo:            appRepo,
		recommendationRepo: recommendationRepo,
		auditRepo:          auditRepo,
		db:                 db,
	}
}

// onboardingFacts are the scoring inputs reconstructed from the user's
// onboarding answer log. Absent answers leave zero values, which contribute
// no score.
type onboardingFacts struct {
	primaryIntent string
	specificGoals []string
	interests     []string
}

// GenerateForUser reads the user's onboarding facts and the active catalog
// fresh, scores every eligible app, and replaces the user's stored
// recommendation set with the top scored entries inside one transaction.
func (rf *RecommendationFlowImpl) GenerateForUser(ctx context.Context, userID uint) error {
	user, err := rf.userRepo.ByID(ctx, userID)
	if err != nil {
		recommendationRuns.WithLabelValues("error").Inc()
		return err
	}
	if user == nil || !utils.IsTrue(user.IsActive) {
		// Nothing to recommend for missing or deactivated users
		recommendationRuns.WithLabelValues("skipped").Inc()
		return nil
	}

	facts, err := rf.gatherFacts(ctx, userID)
	if err != nil {
		recommendationRuns.WithLabelValues("error").Inc()
		return err
	}

	apps, err := rf.appRepo.ListActive(ctx)
	if err != nil {
		recommendationRuns.WithLabelValues("error").Inc()
		return err
	}

	scored := scoreApps(apps, user, facts)

	// Rank by score descending; equal scores order by app ID ascending so
	// the ranking is deterministic regardless of catalog read order.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].app.ID < scored[j].app.ID
	})

	if len(scored) > utils.MaxRecommendationsPerUser {
		scored = scored[:utils.MaxRecommendationsPerUser]
	}

	shownAt := utils.UTCNow()
	rows := make([]*models.AppRecommendation, 0, len(scored))
	for _, sa := range scored {
		rows = append(rows, &models.AppRecommendation{
			UserID:              userID,
			AppID:               sa.app.ID,
			RecommendationScore: sa.score,
			ShownAt:             shownAt,
			Accepted:            utils.ToPtr(false),
		})
	}

	// Replace, never append: the delete and insert share one transaction so
	// a crash cannot leave a mixed old/new set.
	err = repository.WithTransaction(ctx, rf.db, func(txCtx context.Context) error {
		if err := rf.recommendationRepo.DeleteByUser(txCtx, userID); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return rf.recommendationRepo.SaveBatch(txCtx, rows)
	})
	if err != nil {
		recommendationRuns.WithLabelValues("error").Inc()
		return err
	}

	recommendationRuns.WithLabelValues("success").Inc()
	recommendationRowsPersisted.Add(float64(len(rows)))

	msg := fmt.Sprintf("Generated %d recommendations for user %d", len(rows), userID)
	_ = rf.createAuditLog(ctx, &userID, models.AuditActionRecommendationsGenerated, msg, true, nil, nil)

	return nil
}

// ListForUser returns the user's current recommendation set in rank order
func (rf *RecommendationFlowImpl) ListForUser(ctx context.Context, userID uint, metadata *ClientMetadata) (*dto.RecommendationListResponse, error) {
	recs, err := rf.recommendationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("RECOMMENDATION_LIST_FAILED", "Failed to list recommendations", err)
	}

	items := make([]dto.RecommendationDTO, 0, len(recs))
	for _, rec := range recs {
		items = append(items, ToRecommendationDTO(*rec))
	}

	return &dto.RecommendationListResponse{
		Recommendations: items,
	}, nil
}

// Accept marks one of the user's recommendations as accepted
func (rf *RecommendationFlowImpl) Accept(ctx context.Context, userID uint, req *dto.RecommendationAcceptRequest, metadata *ClientMetadata) (*dto.RecommendationAcceptResponse, error) {
	rec, err := rf.recommendationRepo.ByID(ctx, req.RecommendationID)
	if err != nil {
		return nil, NewBusinessError("RECOMMENDATION_LOOKUP_FAILED", "Failed to lookup recommendation", err)
	}
	if rec == nil {
		return nil, NewBusinessError("RECOMMENDATION_NOT_FOUND", "Recommendation not found", ErrRecommendationNotFound)
	}
	if rec.UserID != userID {
		return nil, NewBusinessError("RECOMMENDATION_ACCESS_DENIED", "Recommendation access denied", ErrRecommendationAccessDenied)
	}

	err = repository.WithTransaction(ctx, rf.db, func(txCtx context.Context) error {
		return rf.recommendationRepo.MarkAccepted(txCtx, rec.ID, utils.UTCNow())
	})
	if err != nil {
		errMsg := fmt.Sprintf("Failed to accept recommendation %d: %s", rec.ID, err.Error())
		_ = rf.createAuditLog(ctx, &userID, models.AuditActionRecommendationAccepted, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("RECOMMENDATION_ACCEPT_FAILED", "Failed to accept recommendation", err)
	}

	msg := fmt.Sprintf("Recommendation accepted: %d", rec.ID)
	_ = rf.createAuditLog(ctx, &userID, models.AuditActionRecommendationAccepted, msg, true, nil, metadata)

	return &dto.RecommendationAcceptResponse{
		Message:  "Recommendation accepted",
		Accepted: true,
	}, nil
}

// gatherFacts scans the user's onboarding answer log. The log permits
// multiple rows per question key; the most recent row by insertion order
// wins. Rows with payloads that fail to decode are treated as absent.
func (rf *RecommendationFlowImpl) gatherFacts(ctx context.Context, userID uint) (onboardingFacts, error) {
	var facts onboardingFacts

	intentRow, err := rf.onboardingRepo.LatestByQuestionKey(ctx, userID, models.QuestionKeyIntent)
	if err != nil {
		return facts, err
	}
	if intentRow != nil {
		var intent models.IntentResponse
		if err := json.Unmarshal(intentRow.Response, &intent); err == nil {
			facts.primaryIntent = intent.PrimaryIntent
			facts.specificGoals = intent.SpecificGoals
		}
	}

	profileRow, err := rf.onboardingRepo.LatestByQuestionKey(ctx, userID, models.QuestionKeyProfileSetup)
	if err != nil {
		return facts, err
	}
	if profileRow != nil {
		var profile models.ProfileSetupResponse
		if err := json.Unmarshal(profileRow.Response, &profile); err == nil {
			facts.interests = profile.Interests
		}
	}

	return facts, nil
}

type scoredApp struct {
	app   *models.App
	score int
}

// scoreApps applies the eligibility gates and scoring weights to every app
// in the catalog and returns the apps that passed both gates with their
// accumulated scores, in catalog order.
func scoreApps(apps []*models.App, user *models.User, facts onboardingFacts) []scoredApp {
	now := utils.UTCNow()
	isMinor := user.IsMinor(now)
	accountType := user.AccountType.TypeName

	scored := make([]scoredApp, 0, len(apps))
	for _, app := range apps {
		score, eligible := scoreApp(app, accountType, isMinor, facts)
		if !eligible {
			continue
		}
		scored = append(scored, scoredApp{app: app, score: score})
	}
	return scored
}

// scoreApp computes one app's score for one user. The second return value
// is false when the app fails an eligibility gate and must not appear in
// the output at any score.
func scoreApp(app *models.App, accountType string, isMinor bool, facts onboardingFacts) (int, bool) {
	// Gate: account type
	if !app.SuitableFor(accountType) {
		return 0, false
	}

	// Gate: age
	if app.AgeRestriction == models.AgeRestrictionAdultsOnly && isMinor {
		return 0, false
	}

	var score int
	if app.IsUniversal() {
		score += utils.ScoreBaseUniversal
	} else {
		score += utils.ScoreBaseAccountTypeMatch
	}

	// Intent bonus: the primary intent scores once, and every specific goal
	// found among the app's relevant intents scores again. Both bonuses are
	// deliberately uncapped.
	if app.HasRelevantIntent(facts.primaryIntent) {
		score += utils.ScorePrimaryIntentMatch
	}
	for _, goal := range facts.specificGoals {
		if app.HasRelevantIntent(goal) {
			score += utils.ScorePerGoalMatch
		}
	}

	// Interest bonus, also uncapped
	for _, interest := range facts.interests {
		if app.HasRelevantInterest(interest) {
			score += utils.ScorePerInterestMatch
		}
	}

	return score, true
}

func (rf *RecommendationFlowImpl) createAuditLog(ctx context.Context, userID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
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

	return rf.auditRepo.Save(ctx, audit)
}
