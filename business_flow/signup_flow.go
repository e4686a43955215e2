// Package businessflow contains the core business logic and use cases for onboarding and recommendation workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/soundroots/communityos/app/dto"
	"github.com/soundroots/communityos/app/services"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	"github.com/soundroots/communityos/utils"
	"gorm.io/gorm"
)

// SignupFlow handles the complete signup business logic
type SignupFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error)
	VerifyOTP(ctx context.Context, req *dto.OTPVerificationRequest, metadata *ClientMetadata) (*dto.OTPVerificationResponse, error)
	ResendOTP(ctx context.Context, req *dto.OTPResendRequest, metadata *ClientMetadata) (*dto.OTPResendResponse, error)
}

// SignupFlowImpl implements the signup business flow
type SignupFlowImpl struct {
	userRepo        repository.UserRepository
	accountTypeRepo repository.AccountTypeRepository
	otpRepo         repository.OTPVerificationRepository
	sessionRepo     repository.UserSessionRepository
	auditRepo       repository.AuditLogRepository
	onboardingRepo  repository.OnboardingResponseRepository
	tokenService    services.TokenService
	notificationSvc services.NotificationService
	redisClient     *redis.Client
	db              *gorm.DB
}

// NewSignupFlow creates a new signup flow instance
func NewSignupFlow(
	userRepo repository.UserRepository,
	accountTypeRepo repository.AccountTypeRepository,
	otpRepo repository.OTPVerificationRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	onboardingRepo repository.OnboardingResponseRepository,
	tokenService services.TokenService,
	notificationSvc services.NotificationService,
	redisClient *redis.Client,
	db *gorm.DB,
) SignupFlow {
	return &SignupFlowImpl{
		userRepo:        userRepo,
		accountTypeRepo: accountTypeRepo,
		otpRepo:         otpRepo,
		sessionRepo:     sessionRepo,
		auditRepo:       auditRepo,
		onboardingRepo:  onboardingRepo,
		tokenService:    tokenService,
		notificationSvc: notificationSvc,
		redisClient:     redisClient,
		db:              db,
	}
}

// Signup handles the complete signup process
func (s *SignupFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	// Validate business rules
	if err := s.validateSignupRequest(ctx, req); err != nil {
		return nil, NewBusinessError("SIGNUP_VALIDATION_FAILED", "Signup validation failed", err)
	}

	// Use transaction for atomicity
	var user *models.User
	var otpCode string

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Create user
		var err error
		user, err = s.createUser(txCtx, req)
		if err != nil {
			return err
		}

		// Record the account type answer as the first onboarding row
		if err := s.recordAccountTypeAnswer(txCtx, user.ID, req.AccountType); err != nil {
			return err
		}

		// Generate and save OTP
		otpCode, err = s.generateAndSaveOTP(txCtx, user.ID, user.Mobile, models.OTPTypeMobile)
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Signup initiation failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionSignupFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	} else {
		msg := fmt.Sprintf("Signup initiated successfully: %d", user.ID)
		_ = s.createAuditLog(ctx, user, models.AuditActionSignupInitiated, msg, true, nil, metadata)
	}

	// Send OTP via SMS (outside transaction to avoid rollback on SMS failure)
	go func() {
		err := s.notificationSvc.SendSMS(user.Mobile, fmt.Sprintf("Your verification code is: %s", otpCode))
		if err != nil {
			errMsg := fmt.Sprintf("Failed to send SMS: %v", err)
			_ = s.createAuditLog(context.Background(), user, models.AuditActionOTPSMSFailed, errMsg, false, &errMsg, metadata)
		}
	}()

	return &dto.SignupResponse{
		Message:   "Signup initiated successfully. OTP sent to your mobile number.",
		UserID:    user.ID,
		OTPSent:   true,
		OTPTarget: s.maskMobileNumber(user.Mobile),
	}, nil
}

// VerifyOTP handles OTP verification and completes signup
func (s *SignupFlowImpl) VerifyOTP(ctx context.Context, req *dto.OTPVerificationRequest, metadata *ClientMetadata) (*dto.OTPVerificationResponse, error) {
	// Validate business rules
	if err := s.validateOTPVerificationRequest(ctx, req); err != nil {
		return nil, NewBusinessError("OTP_VERIFICATION_VALIDATION_FAILED", "OTP verification validation failed", err)
	}

	var user *models.User
	var tokens struct {
		access  string
		refresh string
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Find user
		var err error
		user, err = s.userRepo.ByID(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		// Verify OTP
		if err := s.verifyOTPCode(txCtx, req.UserID, req.OTPCode, req.OTPType); err != nil {
			return err
		}

		// Mark user as verified and complete signup
		if err := s.completeSignup(txCtx, user, req.OTPType); err != nil {
			return err
		}

		// Generate tokens
		tokens.access, tokens.refresh, err = s.tokenService.GenerateTokens(user.ID)
		if err != nil {
			return err
		}

		// Create session
		if err := s.createSession(txCtx, user.ID, tokens.access, tokens.refresh, metadata); err != nil {
			return err
		}

		// Get user again to get the updated record
		user, err = s.userRepo.ByID(txCtx, user.ID)
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("OTP verification failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPVerificationFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("OTP_VERIFICATION_FAILED", "OTP verification failed", err)
	} else {
		msg := fmt.Sprintf("Signup completed successfully: %d", user.ID)
		_ = s.createAuditLog(ctx, user, models.AuditActionSignupCompleted, msg, true, nil, metadata)
	}

	return &dto.OTPVerificationResponse{
		Message:      "Signup completed successfully!",
		Token:        tokens.access,
		RefreshToken: tokens.refresh,
		User:         ToAuthUserDTO(*user),
	}, nil
}

// ResendOTP generates and sends a new OTP
func (s *SignupFlowImpl) ResendOTP(ctx context.Context, req *dto.OTPResendRequest, metadata *ClientMetadata) (*dto.OTPResendResponse, error) {
	// Validate business rules
	if err := s.validateOTPResendRequest(ctx, req); err != nil {
		return nil, NewBusinessError("OTP_RESEND_VALIDATION_FAILED", "OTP resend validation failed", err)
	}

	// Throttle resends through redis; a cache outage falls back to
	// allowing the resend rather than blocking the user
	if s.redisClient != nil {
		key := fmt.Sprintf("otp:resend:%d:%s", req.UserID, req.OTPType)
		acquired, err := s.redisClient.SetNX(ctx, key, "1", utils.OTPResendCooldown).Result()
		if err == nil && !acquired {
			return nil, NewBusinessError("OTP_RESEND_THROTTLED", "OTP resend throttled", ErrOTPResendTooSoon)
		}
	}

	var user *models.User

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Find user
		var err error
		user, err = s.userRepo.ByID(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		// Expire old OTPs
		if err := s.otpRepo.ExpireOldOTPs(txCtx, req.UserID, req.OTPType); err != nil {
			return err
		}

		// Generate new OTP
		target := user.Mobile
		if req.OTPType == models.OTPTypeEmail {
			target = user.Email
		}

		otpCode, err := s.generateAndSaveOTP(txCtx, req.UserID, target, req.OTPType)
		if err != nil {
			return err
		}

		// Send notification
		message := fmt.Sprintf("Your new verification code is: %s. Valid for 5 minutes.", otpCode)
		if req.OTPType == models.OTPTypeMobile {
			return s.notificationSvc.SendSMS(target, message)
		} else {
			return s.notificationSvc.SendEmail(target, "Verification Code", message)
		}
	})

	if err != nil {
		errMsg := fmt.Sprintf("Resend OTP failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPResendFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("RESEND_OTP_FAILED", "Resend OTP failed", err)
	} else {
		msg := fmt.Sprintf("OTP resent successfully: %d", req.UserID)
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPResent, msg, true, nil, metadata)
	}

	return &dto.OTPResendResponse{
		Message:         "OTP resent successfully",
		OTPSent:         true,
		MaskedOTPTarget: s.maskMobileNumber(user.Mobile),
	}, nil
}

// Private helper methods

func (s *SignupFlowImpl) validateSignupRequest(ctx context.Context, req *dto.SignupRequest) error {
	// Check if email already exists
	existingUser, err := s.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return ErrEmailAlreadyExists
	}

	// Check if mobile already exists
	existingUser, err = s.userRepo.ByMobile(ctx, req.Mobile)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return ErrMobileAlreadyExists
	}

	// Validate organisation fields for band and organisation accounts
	if req.AccountType == models.AccountTypeBand || req.AccountType == models.AccountTypeOrganisation {
		if req.OrganisationName == nil || req.City == nil {
			return ErrOrganisationFieldsRequired
		}
	}

	// Individuals must supply a date of birth so age-gated recommendations
	// can be applied correctly
	if req.AccountType == models.AccountTypeIndividual && req.DateOfBirth == nil {
		return ErrDateOfBirthRequired
	}

	return nil
}

func (s *SignupFlowImpl) createUser(ctx context.Context, req *dto.SignupRequest) (*models.User, error) {
	// Get account type
	accountType, err := s.accountTypeRepo.ByTypeName(ctx, req.AccountType)
	if err != nil {
		return nil, err
	}
	if accountType == nil {
		return nil, ErrAccountTypeNotFound
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Create user
	user := &models.User{
		UUID:             uuid.New(),
		AccountTypeID:    accountType.ID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Mobile:           req.Mobile,
		Email:            req.Email,
		DateOfBirth:      req.DateOfBirth,
		OrganisationName: req.OrganisationName,
		City:             req.City,
		PasswordHash:     string(hashedPassword),
		IsEmailVerified:  utils.ToPtr(false),
		IsMobileVerified: utils.ToPtr(false),
		IsActive:         utils.ToPtr(true),
	}

	err = s.userRepo.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *SignupFlowImpl) recordAccountTypeAnswer(ctx context.Context, userID uint, accountType string) error {
	payload, err := json.Marshal(map[string]string{"account_type": accountType})
	if err != nil {
		return err
	}

	return s.onboardingRepo.Save(ctx, &models.OnboardingResponse{
		UserID:      userID,
		QuestionKey: models.QuestionKeyAccountType,
		Response:    payload,
	})
}

func (s *SignupFlowImpl) generateAndSaveOTP(ctx context.Context, userID uint, target, otpType string) (string, error) {
	// Generate 6-digit OTP
	otpCode, err := GenerateOTP()
	if err != nil {
		return "", err
	}

	// Create OTP record
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        userID,
		OTPCode:       otpCode,
		OTPType:       otpType,
		TargetValue:   target,
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   3,
		ExpiresAt:     time.Now().Add(utils.OTPExpiry),
	}

	err = s.otpRepo.Save(ctx, otp)
	if err != nil {
		return "", err
	}

	return otpCode, nil
}

func (s *SignupFlowImpl) verifyOTPCode(ctx context.Context, userID uint, code, otpType string) error {
	// Find active OTP
	otps, err := s.otpRepo.ListActiveOTPs(ctx, userID)
	if err != nil {
		return err
	}

	var validOTP *models.OTPVerification
	for _, otp := range otps {
		if otp.OTPType == otpType && otp.Status == models.OTPStatusPending && otp.CanAttempt() {
			validOTP = otp
			break
		}
	}

	if validOTP == nil {
		return ErrNoValidOTPFound
	}

	if validOTP.OTPCode != code {
		// Create failed attempt record with correlation ID
		failedOTP := *validOTP
		failedOTP.ID = 0
		failedOTP.CorrelationID = validOTP.CorrelationID // Use same correlation ID
		failedOTP.AttemptsCount++
		failedOTP.Status = models.OTPStatusFailed
		s.otpRepo.Save(ctx, &failedOTP)

		return ErrInvalidOTPCode
	}

	// Create verified OTP record with correlation ID
	verifiedOTP := *validOTP
	verifiedOTP.ID = 0
	verifiedOTP.CorrelationID = validOTP.CorrelationID // Use same correlation ID
	verifiedOTP.Status = models.OTPStatusVerified
	verifiedOTP.VerifiedAt = utils.ToPtr(time.Now())

	return s.otpRepo.Save(ctx, &verifiedOTP)
}

func (s *SignupFlowImpl) completeSignup(ctx context.Context, user *models.User, otpType string) error {
	// Update verification status for existing user (maintain referential integrity)
	var isMobileVerified, isEmailVerified *bool
	var mobileVerifiedAt, emailVerifiedAt *time.Time

	switch otpType {
	case models.OTPTypeMobile:
		isMobileVerified = utils.ToPtr(true)
		mobileVerifiedAt = utils.ToPtr(time.Now())
	case models.OTPTypeEmail:
		isEmailVerified = utils.ToPtr(true)
		emailVerifiedAt = utils.ToPtr(time.Now())
	default:
		return ErrInvalidOTPType
	}

	return s.userRepo.UpdateVerificationStatus(ctx, user.ID, isMobileVerified, isEmailVerified, mobileVerifiedAt, emailVerifiedAt)
}

func (s *SignupFlowImpl) createSession(ctx context.Context, userID uint, accessToken, refreshToken string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  accessToken,
		RefreshToken:  &refreshToken,
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
		IsActive:      utils.ToPtr(true),
		ExpiresAt:     time.Now().Add(utils.SessionTimeout),
	}

	return s.sessionRepo.Save(ctx, session)
}

func (s *SignupFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

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

	// Extract request ID from context if available
	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return s.auditRepo.Save(ctx, audit)
}

func (s *SignupFlowImpl) maskMobileNumber(mobile string) string {
	if len(mobile) < 8 {
		return mobile
	}
	// Show +447****1234 format
	return mobile[:4] + "****" + mobile[len(mobile)-4:]
}

func (s *SignupFlowImpl) validateOTPVerificationRequest(ctx context.Context, req *dto.OTPVerificationRequest) error {
	// Validate user exists
	user, err := s.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	// Validate OTP type
	if req.OTPType != models.OTPTypeMobile && req.OTPType != models.OTPTypeEmail {
		return ErrInvalidOTPType
	}

	// Validate OTP code format (6 digits)
	if len(req.OTPCode) != 6 {
		return ErrInvalidOTPCode
	}

	// Check if user is already verified for this OTP type
	if req.OTPType == models.OTPTypeMobile && utils.IsTrue(user.IsMobileVerified) {
		return ErrAlreadyVerified
	}
	if req.OTPType == models.OTPTypeEmail && utils.IsTrue(user.IsEmailVerified) {
		return ErrAlreadyVerified
	}

	return nil
}

func (s *SignupFlowImpl) validateOTPResendRequest(ctx context.Context, req *dto.OTPResendRequest) error {
	// Validate user exists
	user, err := s.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	// Validate OTP type
	if req.OTPType != models.OTPTypeMobile && req.OTPType != models.OTPTypeEmail {
		return ErrInvalidOTPType
	}

	// Check if user is already verified for this OTP type
	if req.OTPType == models.OTPTypeMobile && utils.IsTrue(user.IsMobileVerified) {
		return ErrAlreadyVerified
	}
	if req.OTPType == models.OTPTypeEmail && utils.IsTrue(user.IsEmailVerified) {
		return ErrAlreadyVerified
	}

	return nil
}
