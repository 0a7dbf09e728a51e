package models

import "time"

const (
	PaymentStatusPending         = "PENDING"
	PaymentStatusPaid            = "PAID"
	PaymentStatusFailed          = "FAILED"
	PaymentStatusRefunded        = "REFUNDED"
	PaymentStatusRefundedPartial = "REFUNDED_PARTIAL"
)

// Payment is one attempted or completed charge. A provider notification for
// the same external payment must upsert the existing row, never duplicate it;
// the (provider, provider_ref) unique index carries that guarantee.
type Payment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Provider       string    `gorm:"type:varchar(20);not null;index:ux_payments_provider_ref,unique,priority:1" json:"provider"`
	ProviderRef    string    `gorm:"type:varchar(191);not null;index:ux_payments_provider_ref,unique,priority:2" json:"provider_ref"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	PriceID        uint      `gorm:"index" json:"price_id"`
	Status         string    `gorm:"type:varchar(32);not null;default:'PENDING';index" json:"status"`
	Amount         int64     `gorm:"not null" json:"amount"`
	Currency       string    `gorm:"type:varchar(3);not null" json:"currency"`
	RefundedAmount int64     `gorm:"not null;default:0" json:"refunded_amount"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RemainingRefundable is the single place refund headroom is computed.
// RefundedAmount is a NOT NULL column selected on every read, so this never
// operates on a missing value.
func (p *Payment) RemainingRefundable() int64 {
	return p.Amount - p.RefundedAmount
}

// IsRefundable reports whether any amount can still be refunded.
func (p *Payment) IsRefundable() bool {
	switch p.Status {
	case PaymentStatusPaid, PaymentStatusRefundedPartial:
		return p.RemainingRefundable() > 0
	default:
		return false
	}
}
