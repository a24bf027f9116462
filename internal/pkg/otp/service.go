// Package otp issues, verifies and resends the 6-digit email confirmation
// codes attached to user profiles.
package otp

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/metrics"
)

// ProfileStore is the profile persistence the service needs.
type ProfileStore interface {
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	GetByOTP(ctx context.Context, code string) (*models.UserProfile, error)
	SaveOTP(ctx context.Context, profile *models.UserProfile) error
	ClearOTP(ctx context.Context, id string) error
	MarkEmailConfirmed(ctx context.Context, id string, at time.Time) error
}

// Sender delivers a code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// Confirmer marks an identity's email as confirmed upstream.
type Confirmer interface {
	ConfirmEmail(ctx context.Context, userID string) error
}

type Service struct {
	profiles  ProfileStore
	sender    Sender
	confirmer Confirmer
	now       func() time.Time
	generate  func() (string, error)
}

func NewService(profiles ProfileStore, sender Sender, confirmer Confirmer) *Service {
	return &Service{
		profiles:  profiles,
		sender:    sender,
		confirmer: confirmer,
		now:       time.Now,
		generate:  models.GenerateOTP,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue stores a fresh code on profile and emails it. When delivery fails
// the code is removed again and the last send time restored.
func (s *Service) Issue(ctx context.Context, profile *models.UserProfile) (string, error) {
	const op = "otp.Issue"

	code, err := s.generate()
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, op, "failed to generate code", err)
	}
	prevSentAt := profile.LastSentAt
	profile.SetOTP(code, s.now())
	if err := s.profiles.SaveOTP(ctx, profile); err != nil {
		return "", apperr.Wrap(apperr.InternalError, op, "failed to store code", err)
	}

	if err := s.sender.SendOTP(ctx, profile.Email, code); err != nil {
		metrics.ObserveOTP(metrics.OTPSendFailed)
		log.Errorf("[OTP] Sending code to %s failed: %v", profile.Email, err)
		// nothing was delivered, so the resend interval restarts from the previous send
		profile.ClearOTP()
		profile.LastSentAt = prevSentAt
		if clearErr := s.profiles.SaveOTP(ctx, profile); clearErr != nil {
			log.Errorf("[OTP] Failed to delete undelivered code for %s: %v", profile.ID, clearErr)
		}
		return "", apperr.Wrap(apperr.UpstreamFailure, op, "failed to send verification email", err)
	}

	metrics.ObserveOTP(metrics.OTPIssued)
	return code, nil
}

// Verify confirms the email of the profile holding code.
func (s *Service) Verify(ctx context.Context, code string) (*models.UserProfile, error) {
	const op = "otp.Verify"

	if !validCode(code) {
		return nil, apperr.New(apperr.InvalidInput, op, "code must be 6 digits")
	}

	profile, err := s.profiles.GetByOTP(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.ObserveOTP(metrics.OTPNotFound)
			return nil, apperr.New(apperr.NotFound, op, "invalid code")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to look up code", err)
	}

	now := s.now()
	if profile.IsOTPExpired(now) {
		if err := s.profiles.ClearOTP(ctx, profile.ID); err != nil {
			log.Errorf("[OTP] Failed to delete expired code for %s: %v", profile.ID, err)
		}
		metrics.ObserveOTP(metrics.OTPExpired)
		return nil, apperr.New(apperr.Expired, op, "code expired")
	}

	if err := s.confirmer.ConfirmEmail(ctx, profile.ID); err != nil {
		log.Errorf("[OTP] Confirming email of %s failed: %v", profile.ID, err)
		return nil, apperr.Wrap(apperr.UpstreamFailure, op, "failed to confirm email", err)
	}
	if err := s.profiles.MarkEmailConfirmed(ctx, profile.ID, now); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to update profile", err)
	}

	profile.ClearOTP()
	profile.EmailConfirmedAt = &now
	metrics.ObserveOTP(metrics.OTPVerified)
	log.Infof("[OTP] Email confirmed for %s", profile.ID)
	return profile, nil
}

// Resend replaces the code of an unconfirmed profile, at most once per
// minute.
func (s *Service) Resend(ctx context.Context, email string) (string, error) {
	const op = "otp.Resend"

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.New(apperr.NotFound, op, "unknown email")
		}
		return "", apperr.Wrap(apperr.InternalError, op, "failed to look up profile", err)
	}
	if profile.IsEmailConfirmed() {
		return "", apperr.New(apperr.InvalidInput, op, "email already confirmed")
	}
	if !profile.CanResendOTP(s.now()) {
		metrics.ObserveOTP(metrics.OTPRateLimited)
		return "", apperr.New(apperr.RateLimited, op, "please wait before requesting a new code")
	}
	return s.Issue(ctx, profile)
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
