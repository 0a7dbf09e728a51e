package adminactions

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/invoicenum"
	"github.com/LukasWeidner/TalentFox/internal/pkg/subscriptions"
)

// Store provides the ledger operations admin workflows need. WithTx binds a
// store to one transaction so multi-row mutations (payment + invoices +
// audit) commit atomically. The *If/Claim writes carry the loaded updated_at
// in their WHERE clause: when a concurrent workflow committed in between, the
// guarded write matches zero rows and returns ErrStaleData, so the freshness
// token holds through commit instead of only at read time.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetPayment(ctx context.Context, id uint) (*models.Payment, error)
	SavePaymentIf(ctx context.Context, p *models.Payment, loadedAt time.Time) error
	GetInvoiceForPayment(ctx context.Context, paymentID uint) (*models.Invoice, error)
	SaveInvoice(ctx context.Context, inv *models.Invoice) error
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	AllocateNumber(ctx context.Context, invoiceID uint, issuedAt time.Time) (string, error)
	GetSubscription(ctx context.Context, id uint) (*models.Subscription, error)
	ClaimSubscription(ctx context.Context, id uint, loadedAt time.Time) error
	SubscriptionRepository() subscriptions.Repository
	GetPlan(ctx context.Context, id uint) (*models.Plan, error)
	GetPrice(ctx context.Context, id uint) (*models.Price, error)
	FindAuditByKey(ctx context.Context, key string) (*models.AuditLog, error)
	CreateAudit(ctx context.Context, row *models.AuditLog) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates the GORM-backed admin store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *gormStore) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) SavePaymentIf(ctx context.Context, p *models.Payment, loadedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND updated_at = ?", p.ID, loadedAt).
		Updates(map[string]interface{}{
			"status":          p.Status,
			"refunded_amount": p.RefundedAmount,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleData
	}
	return nil
}

func (s *gormStore) GetInvoiceForPayment(ctx context.Context, paymentID uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *gormStore) SaveInvoice(ctx context.Context, inv *models.Invoice) error {
	return s.db.WithContext(ctx).Save(inv).Error
}

func (s *gormStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *gormStore) AllocateNumber(ctx context.Context, invoiceID uint, issuedAt time.Time) (string, error) {
	return invoicenum.NewAllocatorFromDB(s.db).Allocate(ctx, invoiceID, issuedAt, false)
}

func (s *gormStore) GetSubscription(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ClaimSubscription touches the row conditionally on the loaded updated_at.
// A concurrent workflow that committed after our read makes this match zero
// rows, turning the race into ErrStaleData before any mutation happens.
func (s *gormStore) ClaimSubscription(ctx context.Context, id uint, loadedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND updated_at = ?", id, loadedAt).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleData
	}
	return nil
}

func (s *gormStore) SubscriptionRepository() subscriptions.Repository {
	return subscriptions.NewRepository(s.db)
}

func (s *gormStore) GetPlan(ctx context.Context, id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *gormStore) GetPrice(ctx context.Context, id uint) (*models.Price, error) {
	var price models.Price
	if err := s.db.WithContext(ctx).First(&price, id).Error; err != nil {
		return nil, err
	}
	return &price, nil
}

func (s *gormStore) FindAuditByKey(ctx context.Context, key string) (*models.AuditLog, error) {
	var row models.AuditLog
	if err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStore) CreateAudit(ctx context.Context, row *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(row).Error
}
