package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// Subscription groups the credit transactions of a user. The oldest active
// one carries the spendable balance.
type Subscription struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           string    `gorm:"type:varchar(36);not null;index:idx_pay_subscription_user_status,priority:1" json:"user_id"`
	Status           string    `gorm:"type:varchar(32);not null;default:'active';index:idx_pay_subscription_user_status,priority:2" json:"status"`
	StripeCustomerID string    `gorm:"type:varchar(191)" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string { return "pay_subscription" }

func (s *Subscription) IsActive() bool { return s.Status == SubscriptionStatusActive }
