package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListDueForExpiry returns serving subscriptions whose period end has passed.
func (r *subscriptionRepository) ListDueForExpiry(asOf time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status IN ? AND ends_at <= ?",
		[]string{models.SubscriptionStatusActive, models.SubscriptionStatusRenewing},
		asOf).
		Limit(limit).
		Order("ends_at ASC").
		Find(&subs).Error
	return subs, err
}
