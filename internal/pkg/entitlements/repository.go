package entitlements

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LukasWeidner/TalentFox/app/models"
)

// Repository provides DB operations used by the entitlement engine.
type Repository interface {
	GetPayment(ctx context.Context, id uint) (*models.Payment, error)
	GetPrice(ctx context.Context, id uint) (*models.Price, error)
	GetPlan(ctx context.Context, id uint) (*models.Plan, error)
	GetEntitlement(ctx context.Context, userID uint, key string) (*models.UserEntitlement, error)
	UpsertExpiring(ctx context.Context, userID uint, key string, expiresAt time.Time) error
	SetExpiry(ctx context.Context, userID uint, key string, at time.Time) error
	GrantCredits(ctx context.Context, grant *models.CreditGrant) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPrice(ctx context.Context, id uint) (*models.Price, error) {
	var p models.Price
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPlan(ctx context.Context, id uint) (*models.Plan, error) {
	var p models.Plan
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetEntitlement(ctx context.Context, userID uint, key string) (*models.UserEntitlement, error) {
	var e models.UserEntitlement
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND entitlement_key = ?", userID, key).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *gormRepository) UpsertExpiring(ctx context.Context, userID uint, key string, expiresAt time.Time) error {
	ent := models.UserEntitlement{
		UserID:         userID,
		EntitlementKey: key,
		ExpiresAt:      &expiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "entitlement_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at", "updated_at"}),
	}).Create(&ent).Error
}

func (r *gormRepository) SetExpiry(ctx context.Context, userID uint, key string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.UserEntitlement{}).
		Where("user_id = ? AND entitlement_key = ?", userID, key).
		Update("expires_at", at).Error
}

// GrantCredits inserts the per-payment grant row and, when the insert
// actually created a row, increments the user's running credit balance in the
// same transaction. A conflict on payment_id reports created=false.
func (r *gormRepository) GrantCredits(ctx context.Context, grant *models.CreditGrant) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).Create(grant)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		balance := models.UserEntitlement{
			UserID:           grant.UserID,
			EntitlementKey:   models.EntitlementKeyJobCredits,
			RemainingCredits: &grant.Credits,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "entitlement_key"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"remaining_credits": gorm.Expr("COALESCE(remaining_credits, 0) + ?", grant.Credits),
			}),
		}).Create(&balance).Error
	})
	return created, err
}
