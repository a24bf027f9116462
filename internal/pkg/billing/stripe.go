package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/larinai/larinai/internal/pkg/env"
)

const (
	StripeEventCheckoutCompleted     = "checkout.session.completed"
	StripeEventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	checkoutCurrency                 = "eur"
	checkoutProductName              = "LarinAI credit"
)

var ErrStripeNotConfigured = errors.New("stripe is not configured")

// CheckoutInput describes a one-off credit purchase.
type CheckoutInput struct {
	UserID      string
	Email       string
	AmountCents int64
}

// CheckoutSession is the subset of the Stripe session returned to clients.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeConfig holds Stripe credentials and redirect URLs.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func StripeConfigFromEnv() StripeConfig {
	baseURL := strings.TrimRight(env.GetEnv("APP_BASE_URL", "http://localhost:3000"), "/")
	return StripeConfig{
		SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		SuccessURL:    env.GetEnv("STRIPE_SUCCESS_URL", baseURL+"/credits?checkout=success"),
		CancelURL:     env.GetEnv("STRIPE_CANCEL_URL", baseURL+"/credits?checkout=cancel"),
	}
}

// Stripe wraps the Stripe API client for checkout and webhook verification.
type Stripe struct {
	cfg StripeConfig
	api *client.API
}

func NewStripe(cfg StripeConfig) *Stripe {
	s := &Stripe{cfg: cfg}
	if cfg.SecretKey != "" {
		s.api = &client.API{}
		s.api.Init(cfg.SecretKey, nil)
	}
	return s
}

func (s *Stripe) Configured() bool {
	return s != nil && s.api != nil
}

// CreateCheckoutSession opens a payment session for a credit top-up.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	if !s.Configured() {
		return nil, ErrStripeNotConfigured
	}
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", in.AmountCents)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(checkoutCurrency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(checkoutProductName),
					},
					UnitAmount: stripe.Int64(in.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", in.UserID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
func (s *Stripe) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if s == nil || s.cfg.WebhookSecret == "" {
		return stripe.Event{}, ErrStripeNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
