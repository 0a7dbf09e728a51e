package repository

import (
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) ListByStatus(status string, offset, limit int) ([]models.WebhookLog, error) {
	var rows []models.WebhookLog
	err := r.db.Where("status = ?", status).
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
