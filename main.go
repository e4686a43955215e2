// Package main provides the main entry point for the CommunityOS platform
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/soundroots/communityos/app/handlers"
	"github.com/soundroots/communityos/app/middleware"
	"github.com/soundroots/communityos/app/router"
	"github.com/soundroots/communityos/app/scheduler"
	"github.com/soundroots/communityos/app/services"
	businessflow "github.com/soundroots/communityos/business_flow"
	"github.com/soundroots/communityos/config"
	_ "github.com/soundroots/communityos/docs"
	"github.com/soundroots/communityos/models"
	"github.com/soundroots/communityos/repository"
	"github.com/soundroots/communityos/utils"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/google/uuid"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting CommunityOS application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	configureLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Setup graceful shutdown
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// configureLogging routes the standard logger to a rotating file when the
// configuration asks for file output. Rotation is size and age based so the
// process never needs an external logrotate entry.
func configureLogging(cfg config.LoggingConfig) {
	if cfg.Output != "file" && cfg.Output != "both" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
		return
	}
	log.SetOutput(rotator)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService initializes the notification service
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var smsService services.SMSService

	switch cfg.SMS.ProviderDomain {
	case "mock":
		smsService = services.NewMockSMSService()
	default:
		smsService = services.NewSMSService(&cfg.SMS)
	}
	smsProvider := services.NewSMSServiceProvider(smsService)

	var emailProvider services.EmailProvider
	if cfg.Email.Host != "" {
		emailProvider = services.NewSMTPEmailProvider(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.FromEmail,
		)
	} else {
		emailProvider = services.NewMockEmailProvider()
	}

	return services.NewNotificationService(smsProvider, emailProvider)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Seed reference data the application cannot run without
	if err := ensureSeedData(db, cfg); err != nil {
		return nil, err
	}

	// Initialize repositories
	accountTypeRepo := repository.NewAccountTypeRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)
	otpRepo := repository.NewOTPVerificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	onboardingRepo := repository.NewOnboardingResponseRepository(db)
	appRepo := repository.NewAppRepository(db)
	recommendationRepo := repository.NewAppRecommendationRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// Initialize services
	notificationService := initializeNotificationService(cfg)

	// Captcha service for admin
	captchaSvc, err := services.NewCaptchaServiceRotate(2*time.Minute, 15, 300)
	if err != nil {
		return nil, err
	}

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	signupFlow := businessflow.NewSignupFlow(
		userRepo,
		accountTypeRepo,
		otpRepo,
		sessionRepo,
		auditRepo,
		onboardingRepo,
		tokenService,
		notificationService,
		rc,
		db,
	)

	loginFlow := businessflow.NewLoginFlow(
		userRepo,
		sessionRepo,
		otpRepo,
		auditRepo,
		accountTypeRepo,
		tokenService,
		notificationService,
		db,
	)

	recommendationFlow := businessflow.NewRecommendationFlow(
		userRepo,
		onboardingRepo,
		appRepo,
		recommendationRepo,
		auditRepo,
		db,
	)

	onboardingFlow := businessflow.NewOnboardingFlow(
		userRepo,
		onboardingRepo,
		auditRepo,
		recommendationFlow,
		db,
	)

	adminAuthFlow := businessflow.NewAdminAuthFlow(
		adminRepo,
		tokenService,
		captchaSvc,
	)

	adminCatalogFlow := businessflow.NewAdminAppCatalogFlow(
		appRepo,
		recommendationRepo,
		auditRepo,
		db,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(signupFlow, loginFlow)
	onboardingHandler := handlers.NewOnboardingHandler(onboardingFlow)
	recommendationHandler := handlers.NewRecommendationHandler(recommendationFlow)
	adminAuthHandler := handlers.NewAdminAuthHandler(adminAuthFlow)
	adminCatalogHandler := handlers.NewAdminAppCatalogHandler(adminCatalogFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authHandler,
		onboardingHandler,
		recommendationHandler,
		adminAuthHandler,
		adminCatalogHandler,
		authMiddleware,
	)

	// Start maintenance scheduler (stale OTP expiry, session cleanup)
	sched := scheduler.NewMaintenanceScheduler(otpRepo, sessionRepo, cfg.Scheduler.MaintenanceInterval)
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// ensureSeedData creates the account type rows and the bootstrap admin
// account if they do not exist yet. Both are idempotent so restarting the
// process is safe.
func ensureSeedData(db *gorm.DB, cfg *config.ProductionConfig) error {
	if err := ensureAccountTypes(db); err != nil {
		return err
	}
	if cfg.Admin.BootstrapUsername != "" && cfg.Admin.BootstrapPassword != "" {
		if err := ensureBootstrapAdmin(db, cfg.Admin.BootstrapUsername, cfg.Admin.BootstrapPassword); err != nil {
			return err
		}
	}
	return nil
}

func ensureAccountTypes(db *gorm.DB) error {
	accountTypeRepo := repository.NewAccountTypeRepository(db)

	seed := []models.AccountType{
		{TypeName: models.AccountTypeIndividual, DisplayName: "Individual", Description: utils.ToPtr("Solo musician or listener")},
		{TypeName: models.AccountTypeBand, DisplayName: "Band", Description: utils.ToPtr("Group act with shared membership")},
		{TypeName: models.AccountTypeOrganisation, DisplayName: "Organisation", Description: utils.ToPtr("Venue, label, or music business")},
	}

	for i := range seed {
		existing, err := accountTypeRepo.ByTypeName(context.Background(), seed[i].TypeName)
		if err != nil {
			return fmt.Errorf("failed to lookup account type %q: %w", seed[i].TypeName, err)
		}
		if existing != nil {
			continue
		}
		seed[i].CreatedAt = utils.UTCNow()
		seed[i].UpdatedAt = utils.UTCNow()
		if err := accountTypeRepo.Save(context.Background(), &seed[i]); err != nil {
			return fmt.Errorf("failed to seed account type %q: %w", seed[i].TypeName, err)
		}
		log.Printf("Seeded account type %q", seed[i].TypeName)
	}

	return nil
}

func ensureBootstrapAdmin(db *gorm.DB, username, password string) error {
	adminRepo := repository.NewAdminRepository(db)

	existing, err := adminRepo.ByUsername(context.Background(), username)
	if err != nil {
		return fmt.Errorf("failed to lookup bootstrap admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	admin := models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}
	if err := adminRepo.Save(context.Background(), &admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	log.Printf("Created bootstrap admin %q", username)
	return nil
}
