package webhook

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/invoicenum"
)

// Store provides the ledger operations the ingestion service needs. WithTx
// runs the given function against a store bound to one transaction so the
// payment upsert, invoice creation and number allocation commit atomically.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
	CreateLogIfNew(ctx context.Context, row *models.WebhookLog) (bool, error)
	MarkLogHandled(ctx context.Context, id uint, note string) error
	MarkLogFailed(ctx context.Context, id uint, processingError string) error
	UpsertPayment(ctx context.Context, payment *models.Payment) error
	GetInvoiceForPayment(ctx context.Context, paymentID uint) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	AllocateNumber(ctx context.Context, invoiceID uint, issuedAt time.Time) (string, error)
	GetPrice(ctx context.Context, id uint) (*models.Price, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates the GORM-backed webhook store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// CreateLogIfNew inserts the webhook log row unless (provider, external_id)
// already exists. The insert-or-ignore answers "did we see this event
// before" with a single unique-index check before any financial mutation.
func (s *gormStore) CreateLogIfNew(ctx context.Context, row *models.WebhookLog) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

func (s *gormStore) MarkLogHandled(ctx context.Context, id uint, note string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.WebhookLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           models.WebhookLogStatusHandled,
		"handled_at":       &now,
		"processing_error": note,
	}).Error
}

func (s *gormStore) MarkLogFailed(ctx context.Context, id uint, processingError string) error {
	return s.db.WithContext(ctx).Model(&models.WebhookLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           models.WebhookLogStatusFailed,
		"processing_error": processingError,
	}).Error
}

// UpsertPayment writes the payment keyed by (provider, provider_ref).
// RefundedAmount is deliberately absent from the update set: provider replays
// must never reset refund bookkeeping.
func (s *gormStore) UpsertPayment(ctx context.Context, payment *models.Payment) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_ref"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"price_id",
			"status",
			"amount",
			"currency",
			"updated_at",
		}),
	}).Create(payment).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return s.db.WithContext(ctx).
		Where("provider = ? AND provider_ref = ?", payment.Provider, payment.ProviderRef).
		First(payment).Error
}

func (s *gormStore) GetInvoiceForPayment(ctx context.Context, paymentID uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *gormStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *gormStore) AllocateNumber(ctx context.Context, invoiceID uint, issuedAt time.Time) (string, error) {
	return invoicenum.NewAllocatorFromDB(s.db).Allocate(ctx, invoiceID, issuedAt, false)
}

func (s *gormStore) GetPrice(ctx context.Context, id uint) (*models.Price, error) {
	var p models.Price
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
