package models

import "time"

// Transaction is an append-only ledger entry. Positive amounts are top-ups,
// negative amounts are consumption.
type Transaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	AmountInEUR    float64   `gorm:"column:amount_in_eur;type:decimal(12,2);not null" json:"amount_in_eur"`
	Description    string    `gorm:"type:varchar(255)" json:"description"`
	Reference      *string   `gorm:"type:varchar(191);uniqueIndex" json:"reference,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string { return "pay_transactions" }
