package models

import "time"

// AuditLog is the append-only record of administrative mutations. A given
// idempotency key produces at most one row; the unique index on it is the
// dedupe mechanism for admin-initiated side effects.
type AuditLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ActorID        uint      `gorm:"not null;index" json:"actor_id"`
	ResourceType   string    `gorm:"type:varchar(50);not null;index:idx_audit_logs_resource,priority:1" json:"resource_type"`
	ResourceID     uint      `gorm:"not null;index:idx_audit_logs_resource,priority:2" json:"resource_id"`
	Action         string    `gorm:"type:varchar(64);not null;index" json:"action"`
	Reason         string    `gorm:"type:text" json:"reason"`
	Before         JSONMap   `gorm:"type:json" json:"before,omitempty"`
	After          JSONMap   `gorm:"type:json" json:"after,omitempty"`
	Metadata       JSONMap   `gorm:"type:json" json:"metadata,omitempty"`
	IdempotencyKey *string   `gorm:"type:varchar(100);uniqueIndex" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
