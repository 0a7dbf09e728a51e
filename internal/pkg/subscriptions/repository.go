package subscriptions

import (
	"context"

	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

// Repository provides DB operations used by the lifecycle manager.
type Repository interface {
	GetByUser(ctx context.Context, userID uint) (*models.Subscription, error)
	GetByID(ctx context.Context, id uint) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Save(ctx context.Context, sub *models.Subscription) error
	GetPlan(ctx context.Context, id uint) (*models.Plan, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *gormRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *gormRepository) GetPlan(ctx context.Context, id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}
