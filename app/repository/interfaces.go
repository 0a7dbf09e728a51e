package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

// PaymentRepository defines the interface for payment read operations on the
// reconciliation surface
type PaymentRepository interface {
	GetByUserID(userID uint, offset, limit int) ([]models.Payment, error)
}

// InvoiceRepository defines the interface for invoice read operations,
// including the numbering backfill feed
type InvoiceRepository interface {
	GetByUserID(userID uint, offset, limit int) ([]models.Invoice, error)
	ListUnnumbered(limit int) ([]models.Invoice, error)
}

// SubscriptionRepository defines the interface for subscription read
// operations, including the expiry sweep feed
type SubscriptionRepository interface {
	GetByUserID(userID uint) (*models.Subscription, error)
	ListDueForExpiry(asOf time.Time, limit int) ([]models.Subscription, error)
}

// AuditLogRepository defines the interface for audit trail reads
type AuditLogRepository interface {
	ListByResource(resourceType string, resourceID uint, limit int) ([]models.AuditLog, error)
}

// WebhookLogRepository defines the interface for webhook log reads
type WebhookLogRepository interface {
	ListByStatus(status string, offset, limit int) ([]models.WebhookLog, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Payment      PaymentRepository
	Invoice      InvoiceRepository
	Subscription SubscriptionRepository
	AuditLog     AuditLogRepository
	WebhookLog   WebhookLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Payment:      NewPaymentRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Subscription: NewSubscriptionRepository(db),
		AuditLog:     NewAuditLogRepository(db),
		WebhookLog:   NewWebhookLogRepository(db),
	}
}
