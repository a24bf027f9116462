package controllers

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/billing"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

const (
	minTopUpEUR = 1
	maxTopUpEUR = 1000
)

// BillingController serves credit balance, Stripe checkout and the Stripe webhook.
type BillingController struct {
	billing  *billing.Service
	payments PaymentProvider
}

func (b *BillingController) HandleBalance(c *fiber.Ctx) error {
	balance, err := b.billing.Balance(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"balance":   billing.FormatEUR(balance),
		"amountEur": balance,
	})
}

func (b *BillingController) HandleTransactions(c *fiber.Ctx) error {
	list, err := b.billing.RecentTransactions(c.UserContext(), usercontext.GetUserID(c), pageSize)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "transactions": list})
}

// HandleCreateCheckout opens a Stripe checkout session for amount EUR.
func (b *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	const op = "stripe.CreateCheckout"

	var req struct {
		Amount float64 `json:"amount" validate:"required,gte=1,lte=1000"`
	}
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, apperr.Wrap(apperr.InvalidInput, op, "amount must be between 1 and 1000 EUR", err))
	}
	if b.payments == nil || !b.payments.Configured() {
		return respondError(c, apperr.New(apperr.InternalError, op, "payments are not configured"))
	}

	u := usercontext.GetUserContext(c)
	cents := int64(math.Round(billing.RoundHalfUp(req.Amount) * 100))
	sess, err := b.payments.CreateCheckoutSession(c.UserContext(), billing.CheckoutInput{
		UserID:      u.UserID,
		Email:       u.Email,
		AmountCents: cents,
	})
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.UpstreamFailure, op, "failed to create checkout session", err))
	}
	log.Infof("[Stripe] Checkout %s opened for user %s (%d cents)", sess.ID, u.UserID, cents)
	return c.JSON(fiber.Map{"success": true, "url": sess.URL, "sessionId": sess.ID})
}

// HandleStripeWebhook verifies, records and applies a Stripe event. Replays
// of processed events are acknowledged without side effects.
func (b *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	const op = "stripe.Webhook"
	ctx := c.UserContext()

	if b.payments == nil {
		return respondError(c, apperr.New(apperr.InternalError, op, "payments are not configured"))
	}
	payload := append([]byte(nil), c.Body()...)
	event, err := b.payments.ConstructEvent(payload, c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrStripeNotConfigured) {
			return respondError(c, apperr.Wrap(apperr.InternalError, op, "payments are not configured", err))
		}
		log.Warnf("[Stripe] Rejected webhook: %v", err)
		return respondError(c, apperr.Wrap(apperr.InvalidInput, op, "invalid signature", err))
	}

	created, record, err := b.billing.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.WebhookProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to record event", err))
	}
	if !created && record != nil && record.ProcessedAt != nil && record.ProcessingError == "" {
		log.Infof("[Stripe] Duplicate event %s acknowledged", event.ID)
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	var raw []byte
	if event.Data != nil {
		raw = event.Data.Raw
	}
	procErr := b.applyEvent(c, string(event.Type), raw)
	if record != nil {
		if err := b.billing.MarkWebhookProcessed(ctx, record.ID, procErr); err != nil {
			log.Errorf("[Stripe] Failed to mark event %s processed: %v", event.ID, err)
		}
	}
	if procErr != nil && !apperr.Is(procErr, apperr.InvalidInput) {
		// non-2xx makes Stripe redeliver; the top-up reference keeps that idempotent
		return respondError(c, procErr)
	}
	if procErr != nil {
		log.Warnf("[Stripe] Event %s not applied: %v", event.ID, procErr)
	}
	return c.JSON(fiber.Map{"received": true})
}

func (b *BillingController) applyEvent(c *fiber.Ctx, eventType string, raw []byte) error {
	const op = "stripe.applyEvent"

	// delayed methods complete unpaid and settle with async_payment_succeeded;
	// both carry the session id as reference so only one of them credits
	switch eventType {
	case billing.StripeEventCheckoutCompleted, billing.StripeEventAsyncPaymentSucceeded:
	default:
		log.Debugf("[Stripe] Ignoring event type %s", eventType)
		return nil
	}
	checkout, err := billing.ParseCheckoutCompleted(raw)
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, op, "malformed checkout session", err)
	}
	if !checkout.Paid {
		log.Infof("[Stripe] Checkout %s not paid yet", checkout.SessionID)
		return nil
	}
	credited, err := b.billing.TopUp(c.UserContext(), checkout.UserID, checkout.AmountEUR(), checkout.SessionID, checkout.CustomerID)
	if err != nil {
		return err
	}
	if credited {
		log.Infof("[Stripe] Credited %s EUR to user %s", billing.FormatEUR(checkout.AmountEUR()), checkout.UserID)
	}
	return nil
}
