package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/metrics"
)

// Service computes credit balances from the transaction ledger and appends
// top-ups and charges. Balances are never stored.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// roundingEpsilon absorbs binary representation error of cent values.
const roundingEpsilon = 1e-9

// RoundHalfUp rounds to 2 decimals, halves towards positive infinity.
func RoundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5+roundingEpsilon) / 100
}

// FormatEUR renders an amount with exactly two decimals.
func FormatEUR(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Balance sums the transactions of the user's oldest active subscription.
// Users without one have a balance of 0.
func (s *Service) Balance(ctx context.Context, userID string) (float64, error) {
	const op = "billing.Balance"

	sub, err := s.repo.OldestActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, apperr.Wrap(apperr.InternalError, op, "failed to load subscription", err)
	}

	total, err := s.repo.SumTransactions(ctx, sub.ID)
	if err != nil {
		return 0, apperr.Wrap(apperr.InternalError, op, "failed to load transactions", err)
	}
	return RoundHalfUp(total), nil
}

// ensureActiveSubscription returns the ledger subscription, opening one if needed.
func (s *Service) ensureActiveSubscription(ctx context.Context, userID, customerID string) (*models.Subscription, error) {
	sub, err := s.repo.OldestActiveSubscription(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	sub = &models.Subscription{
		UserID:           userID,
		Status:           models.SubscriptionStatusActive,
		StripeCustomerID: customerID,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// TopUp credits amount to the user. A reference already booked is a no-op and
// returns false.
func (s *Service) TopUp(ctx context.Context, userID string, amount float64, reference, customerID string) (bool, error) {
	const op = "billing.TopUp"

	if strings.TrimSpace(userID) == "" || amount <= 0 {
		return false, apperr.New(apperr.InvalidInput, op, "user and positive amount are required")
	}
	sub, err := s.ensureActiveSubscription(ctx, userID, customerID)
	if err != nil {
		return false, apperr.Wrap(apperr.InternalError, op, "failed to open subscription", err)
	}

	tx := &models.Transaction{
		SubscriptionID: sub.ID,
		AmountInEUR:    RoundHalfUp(amount),
		Description:    "Credit top-up",
	}
	if ref := strings.TrimSpace(reference); ref != "" {
		tx.Reference = &ref
	}
	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return false, apperr.Wrap(apperr.InternalError, op, "failed to record transaction", err)
	}
	if created {
		metrics.ObserveLedgerEntry(metrics.LedgerTopUp)
	}
	return created, nil
}

// Charge books a consumption entry. The balance must cover the amount.
func (s *Service) Charge(ctx context.Context, userID string, amount float64, description string) error {
	const op = "billing.Charge"

	if amount <= 0 {
		return nil
	}
	sub, err := s.repo.OldestActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.InsufficientPermissions, op, "insufficient credit")
		}
		return apperr.Wrap(apperr.InternalError, op, "failed to load subscription", err)
	}
	total, err := s.repo.SumTransactions(ctx, sub.ID)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, op, "failed to load transactions", err)
	}
	if RoundHalfUp(total) < RoundHalfUp(amount) {
		return apperr.New(apperr.InsufficientPermissions, op, "insufficient credit")
	}

	if _, err := s.repo.CreateTransaction(ctx, &models.Transaction{
		SubscriptionID: sub.ID,
		AmountInEUR:    -RoundHalfUp(amount),
		Description:    description,
	}); err != nil {
		return apperr.Wrap(apperr.InternalError, op, "failed to record transaction", err)
	}
	metrics.ObserveLedgerEntry(metrics.LedgerCharge)
	return nil
}

// CanAfford reports whether the balance covers amount, without booking anything.
func (s *Service) CanAfford(ctx context.Context, userID string, amount float64) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= RoundHalfUp(amount), nil
}

// RecentTransactions lists the latest entries of the active subscription.
func (s *Service) RecentTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	const op = "billing.RecentTransactions"

	sub, err := s.repo.OldestActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.Transaction{}, nil
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load subscription", err)
	}
	list, err := s.repo.ListTransactions(ctx, sub.ID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load transactions", err)
	}
	return list, nil
}

func (s *Service) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	return s.repo.CountActiveSubscriptions(ctx)
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}
