package billing

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/apperr"
)

type fakeRepo struct {
	subs   []models.Subscription
	txs    []models.Transaction
	events []models.WebhookEvent
	nextID uint
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) OldestActiveSubscription(_ context.Context, userID string) (*models.Subscription, error) {
	var matches []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID && s.Status == models.SubscriptionStatusActive {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return &matches[0], nil
}

func (f *fakeRepo) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	sub.ID = f.id()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	f.subs = append(f.subs, *sub)
	return nil
}

func (f *fakeRepo) SumTransactions(_ context.Context, subscriptionID uint) (float64, error) {
	var total float64
	for _, tx := range f.txs {
		if tx.SubscriptionID == subscriptionID {
			total += tx.AmountInEUR
		}
	}
	return total, nil
}

func (f *fakeRepo) CreateTransaction(_ context.Context, tx *models.Transaction) (bool, error) {
	if tx.Reference != nil {
		for _, existing := range f.txs {
			if existing.Reference != nil && *existing.Reference == *tx.Reference {
				return false, nil
			}
		}
	}
	tx.ID = f.id()
	f.txs = append(f.txs, *tx)
	return true, nil
}

func (f *fakeRepo) ListTransactions(_ context.Context, subscriptionID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.txs {
		if tx.SubscriptionID == subscriptionID && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountActiveSubscriptions(_ context.Context) (int64, error) {
	var n int64
	for _, s := range f.subs {
		if s.IsActive() {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	for i := range f.events {
		if f.events[i].Provider == event.Provider && f.events[i].ProviderEventID == event.ProviderEventID {
			return false, &f.events[i], nil
		}
	}
	event.ID = f.id()
	f.events = append(f.events, *event)
	return true, &f.events[len(f.events)-1], nil
}

func (f *fakeRepo) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	for i := range f.events {
		if f.events[i].ID == id {
			now := time.Now()
			f.events[i].ProcessedAt = &now
			f.events[i].ProcessingError = processingError
		}
	}
	return nil
}

func seedSubscription(repo *fakeRepo, userID, status string, createdAt time.Time, amounts ...float64) uint {
	sub := models.Subscription{UserID: userID, Status: status, CreatedAt: createdAt}
	_ = repo.CreateSubscription(context.Background(), &sub)
	for _, a := range amounts {
		_, _ = repo.CreateTransaction(context.Background(), &models.Transaction{SubscriptionID: sub.ID, AmountInEUR: a})
	}
	return sub.ID
}

func TestBalance_SumsOldestActiveSubscription(t *testing.T) {
	repo := &fakeRepo{}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedSubscription(repo, "u1", models.SubscriptionStatusCanceled, base.Add(-time.Hour), 100)
	seedSubscription(repo, "u1", models.SubscriptionStatusActive, base, 20, -6, -3.5)
	seedSubscription(repo, "u1", models.SubscriptionStatusActive, base.Add(time.Hour), 50)

	balance, err := NewService(repo).Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 10.50, balance)
	assert.Equal(t, "10.50", FormatEUR(balance))
}

func TestBalance_NoActiveSubscription(t *testing.T) {
	repo := &fakeRepo{}
	seedSubscription(repo, "u1", models.SubscriptionStatusCanceled, time.Now(), 42)

	balance, err := NewService(repo).Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", FormatEUR(balance))
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 0},
		{in: 10.5, want: 10.5},
		{in: 1.005, want: 1.01},
		{in: 2.344, want: 2.34},
		{in: -1.5, want: -1.5},
	}
	for _, tt := range tests {
		if got := RoundHalfUp(tt.in); got != tt.want {
			t.Fatalf("RoundHalfUp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTopUp_IdempotentPerReference(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.TopUp(ctx, "u1", 25, "cs_test_1", "cus_1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.TopUp(ctx, "u1", 25, "cs_test_1", "cus_1")
	require.NoError(t, err)
	assert.False(t, created)

	balance, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25.0, balance)
	assert.Len(t, repo.subs, 1)
}

func TestTopUp_RejectsNonPositiveAmount(t *testing.T) {
	_, err := NewService(&fakeRepo{}).TopUp(context.Background(), "u1", 0, "", "")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestCharge(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := context.Background()
	seedSubscription(repo, "u1", models.SubscriptionStatusActive, time.Now(), 5)

	require.NoError(t, svc.Charge(ctx, "u1", 2.5, "transcription"))
	balance, _ := svc.Balance(ctx, "u1")
	assert.Equal(t, 2.5, balance)

	err := svc.Charge(ctx, "u1", 3, "transcription")
	assert.True(t, apperr.Is(err, apperr.InsufficientPermissions))

	err = svc.Charge(ctx, "nobody", 1, "transcription")
	assert.True(t, apperr.Is(err, apperr.InsufficientPermissions))
}

func TestRecordWebhookEvent_Dedupes(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := context.Background()
	in := WebhookEventInput{Provider: "Stripe", ProviderEventID: "evt_1", EventType: StripeEventCheckoutCompleted, PayloadJSON: "{}"}

	created, ev, err := svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.WebhookProviderStripe, ev.Provider)

	created, _, err = svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, svc.MarkWebhookProcessed(ctx, ev.ID, nil))
	assert.NotNil(t, repo.events[0].ProcessedAt)
}

func TestRecordWebhookEvent_HashFallback(t *testing.T) {
	_, ev, err := NewService(&fakeRepo{}).RecordWebhookEvent(context.Background(), WebhookEventInput{Provider: "stripe", PayloadJSON: `{"a":1}`})
	require.NoError(t, err)
	assert.Contains(t, ev.ProviderEventID, "hash:")
}
