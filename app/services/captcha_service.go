// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// CaptchaService guards the back-office login with a rotate-image
// challenge. A challenge is single-use: the first verification attempt
// consumes it whatever the outcome.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

// RotateChallenge carries the assets the admin login page renders
type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
}

// CaptchaServiceImpl implements CaptchaService on go-captcha's rotate mode
// with an in-memory challenge store
type CaptchaServiceImpl struct {
	rotator      rotate.Captcha
	challenges   *challengeStore
	anglePadding int
	imageSize    int
}

// NewCaptchaServiceRotate creates a new rotate captcha service. ttl bounds
// how long an unanswered challenge stays valid; padding is the accepted
// angle error in degrees; imgSizePx is the square image size.
func NewCaptchaServiceRotate(ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(captchaBackgrounds(3, imgSizePx)),
	)

	return &CaptchaServiceImpl{
		rotator:      builder.Make(),
		challenges:   newChallengeStore(ttl),
		anglePadding: padding,
		imageSize:    imgSizePx,
	}, nil
}

// GenerateRotate creates a challenge and stores its target angle under a
// fresh challenge ID
func (s *CaptchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, errors.New("captcha generation returned no challenge data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	challengeID := uuid.New().String()
	s.challenges.Put(challengeID, block.Angle)

	return &RotateChallenge{
		ID:                challengeID,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
	}, nil
}

// VerifyRotate checks the submitted angle against the stored target and
// consumes the challenge regardless of the outcome
func (s *CaptchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	targetAngle, ok := s.challenges.Take(challengeID)
	if !ok {
		return false
	}

	// The validator works in whole degrees
	return rotate.Validate(int(math.Round(userAngle)), targetAngle, s.anglePadding)
}

// challengeStore holds open challenges keyed by ID with a TTL. Entries
// are removed on Take or by the sweep loop, whichever comes first.
type challengeStore struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
	ttl     time.Duration
}

type challengeEntry struct {
	targetAngle int
	expiresAt   time.Time
}

func newChallengeStore(ttl time.Duration) *challengeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	cs := &challengeStore{
		entries: make(map[string]challengeEntry),
		ttl:     ttl,
	}
	go cs.sweepLoop()

	return cs
}

func (cs *challengeStore) Put(id string, targetAngle int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries[id] = challengeEntry{
		targetAngle: targetAngle,
		expiresAt:   time.Now().Add(cs.ttl),
	}
}

// Take removes and returns the target angle for a challenge. Expired or
// unknown IDs report false.
func (cs *challengeStore) Take(id string) (int, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.entries[id]
	if !ok {
		return 0, false
	}
	delete(cs.entries, id)

	if time.Now().After(entry.expiresAt) {
		return 0, false
	}

	return entry.targetAngle, true
}

func (cs *challengeStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		cs.mu.Lock()
		for id, entry := range cs.entries {
			if now.After(entry.expiresAt) {
				delete(cs.entries, id)
			}
		}
		cs.mu.Unlock()
	}
}

// captchaBackgrounds renders simple gradient-plus-noise squares so the
// rotator needs no bundled image assets
func captchaBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}

	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, renderCaptchaBackground(size))
	}

	return imgs
}

func renderCaptchaBackground(size int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))

	// Radial gradient with per-pixel noise
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x - size/2)
			dy := float64(y - size/2)
			t := math.Sqrt(dx*dx+dy*dy) / float64(size/2)
			if t > 1 {
				t = 1
			}

			base := uint8(200 - int(150*t))
			noise := uint8(rand.Intn(30))
			rgba.Set(x, y, color.RGBA{R: base + noise/3, G: base, B: 255 - base/2, A: 255})
		}
	}

	// Faint bars break up the gradient so rotation is visible
	fillRect(rgba, 10, 10, size/3, size/12, color.RGBA{R: 255, G: 255, B: 255, A: 32})
	fillRect(rgba, size/2, size/3, size/3, size/10, color.RGBA{A: 24})

	return rgba
}

func fillRect(dst *image.RGBA, x, y, w, h int, c color.RGBA) {
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Over)
}
