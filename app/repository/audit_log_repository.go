package repository

import (
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository instance
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) ListByResource(resourceType string, resourceID uint, limit int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := r.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Limit(limit).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
