package controllers

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/access"
	"github.com/larinai/larinai/internal/pkg/artifacts"
	"github.com/larinai/larinai/internal/pkg/billing"
	"github.com/larinai/larinai/internal/pkg/supabase"
)

// IdentityProvider is the Supabase Auth surface the auth routes use.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*supabase.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	UpdatePassword(ctx context.Context, userID, password string) error
	SignOut(ctx context.Context, accessToken string) error
}

// OTPService issues and verifies email confirmation codes.
type OTPService interface {
	Issue(ctx context.Context, profile *models.UserProfile) (string, error)
	Verify(ctx context.Context, code string) (*models.UserProfile, error)
	Resend(ctx context.Context, email string) (string, error)
}

// CaptchaVerifier checks registration captchas.
type CaptchaVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) error
}

// PaymentProvider creates checkout sessions and verifies webhooks.
type PaymentProvider interface {
	Configured() bool
	CreateCheckoutSession(ctx context.Context, in billing.CheckoutInput) (*billing.CheckoutSession, error)
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// StatsCache stores the rendered superadmin stats for a short time.
type StatsCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// QueueSizer reports the number of queued processing jobs.
type QueueSizer interface {
	QueuedJobs(ctx context.Context) (int64, error)
}

// Deps wires every controller.
type Deps struct {
	Repos     *repository.Repositories
	Identity  IdentityProvider
	OTP       OTPService
	Captcha   CaptchaVerifier
	Access    *access.Service
	Artifacts *artifacts.Service
	Billing   *billing.Service
	Payments  PaymentProvider
	Cache     StatsCache
	Jobs      QueueSizer
}

// Handlers groups the controllers the router mounts.
type Handlers struct {
	Auth       *AuthController
	Manage     *ManageController
	Artifacts  *ArtifactController
	Billing    *BillingController
	Superadmin *SuperadminController
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		Auth: &AuthController{
			profiles: d.Repos.Profile,
			identity: d.Identity,
			otp:      d.OTP,
			captcha:  d.Captcha,
		},
		Manage:    &ManageController{access: d.Access},
		Artifacts: &ArtifactController{artifacts: d.Artifacts},
		Billing: &BillingController{
			billing:  d.Billing,
			payments: d.Payments,
		},
		Superadmin: &SuperadminController{
			repos:   d.Repos,
			access:  d.Access,
			billing: d.Billing,
			cache:   d.Cache,
			jobs:    d.Jobs,
		},
	}
}
