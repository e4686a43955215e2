// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/soundroots/communityos/repository"
	"github.com/soundroots/communityos/utils"
)

// MaintenanceScheduler periodically expires stale OTP records and removes
// expired user sessions
type MaintenanceScheduler struct {
	otpRepo     repository.OTPVerificationRepository
	sessionRepo repository.UserSessionRepository
	logger      *log.Logger
	interval    time.Duration

	logFile *os.File
}

func NewMaintenanceScheduler(
	otpRepo repository.OTPVerificationRepository,
	sessionRepo repository.UserSessionRepository,
	interval time.Duration,
) *MaintenanceScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	s := &MaintenanceScheduler{
		otpRepo:     otpRepo,
		sessionRepo: sessionRepo,
		interval:    interval,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *MaintenanceScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *MaintenanceScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				if s.logFile != nil {
					_ = s.logFile.Close()
				}
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *MaintenanceScheduler) runOnce(ctx context.Context) {
	// Mark pending OTPs past their expiry as expired so they can no longer
	// be redeemed
	expired, err := s.otpRepo.ExpireStaleOTPs(ctx, utils.UTCNow())
	if err != nil {
		s.logger.Printf("scheduler: expiring stale OTPs failed: %v", err)
	} else if expired > 0 {
		s.logger.Printf("scheduler: expired %d stale OTPs", expired)
	}

	// Remove sessions whose expiry has passed
	removed, err := s.sessionRepo.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Printf("scheduler: cleaning up expired sessions failed: %v", err)
	} else if removed > 0 {
		s.logger.Printf("scheduler: removed %d expired sessions", removed)
	}
}
