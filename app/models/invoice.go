package models

import "time"

const (
	InvoiceTypeSale   = "SALE"
	InvoiceTypeRefund = "REFUND"
)

const (
	InvoiceStatusPaid     = "PAID"
	InvoiceStatusVoid     = "VOID"
	InvoiceStatusRefunded = "REFUNDED"
)

// Invoice is a billing document tied to at most one payment (sale) or
// referencing the invoice it refunds. Number is globally unique once assigned
// and immutable except through the allocator's force path. Total is signed;
// refund invoices carry a negative total.
type Invoice struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	PaymentID        *uint     `gorm:"uniqueIndex" json:"payment_id,omitempty"`
	RefundsInvoiceID *uint     `gorm:"index" json:"refunds_invoice_id,omitempty"`
	Type             string    `gorm:"type:varchar(10);not null;default:'SALE'" json:"type"`
	Status           string    `gorm:"type:varchar(16);not null;default:'PAID'" json:"status"`
	Total            int64     `gorm:"not null" json:"total"`
	Currency         string    `gorm:"type:varchar(3);not null" json:"currency"`
	Number           *string   `gorm:"type:varchar(32);uniqueIndex" json:"number,omitempty"`
	Notes            string    `gorm:"type:text" json:"notes"`
	IssuedAt         time.Time `gorm:"not null" json:"issued_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceSequence holds one monotonically increasing counter per UTC calendar
// day. It is the sole arbiter of invoice-number uniqueness under concurrency.
type InvoiceSequence struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Day       string    `gorm:"type:varchar(8);not null;uniqueIndex" json:"day"`
	Counter   int       `gorm:"not null;default:0" json:"counter"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
