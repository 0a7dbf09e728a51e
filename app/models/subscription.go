package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusRenewing = "renewing"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// Subscription is the single recurring-access record per user. UpdatedAt
// doubles as the optimistic-concurrency token admin workflows compare against.
type Subscription struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID            uint       `gorm:"not null;index" json:"plan_id"`
	Provider          string     `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderRef       string     `gorm:"type:varchar(191);not null;index" json:"provider_ref"`
	Status            string     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	StartedAt         time.Time  `gorm:"not null" json:"started_at"`
	EndsAt            time.Time  `gorm:"not null" json:"ends_at"`
	RenewalAt         *time.Time `gorm:"type:timestamp;default:null" json:"renewal_at,omitempty"`
	CancelAtPeriodEnd bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsServing reports whether the subscription currently grants access.
func (s *Subscription) IsServing() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusRenewing
}
