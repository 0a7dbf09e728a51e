package models

import "time"

const (
	EntitlementKeyPublish    = "profile_publish"
	EntitlementKeyJobCredits = "job_post_credits"
)

// UserEntitlement is one row per (user, key). Expiring entitlements carry
// ExpiresAt; consumable entitlements carry RemainingCredits. UpdatedAt is the
// replay guard: a payment older than the row's last update is a no-op.
type UserEntitlement struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index:ux_user_entitlements_user_key,unique,priority:1" json:"user_id"`
	EntitlementKey   string     `gorm:"type:varchar(50);not null;index:ux_user_entitlements_user_key,unique,priority:2" json:"entitlement_key"`
	ExpiresAt        *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	RemainingCredits *int64     `gorm:"default:null" json:"remaining_credits,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether an expiring entitlement has lapsed. Credit-based
// rows (ExpiresAt nil) never expire.
func (e *UserEntitlement) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// CreditGrant is the immutable per-payment grant record for consumable
// entitlements. The unique payment_id index is the dedupe guard: a second
// insert for the same payment signals "already granted".
type CreditGrant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PaymentID uint      `gorm:"not null;uniqueIndex" json:"payment_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Credits   int64     `gorm:"not null" json:"credits"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
