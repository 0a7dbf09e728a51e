package models

import "time"

const (
	ProductTypeSubscriptionPlan = "subscription_plan"
	ProductTypeJobCredits       = "job_credits"
)

// Plan describes a recurring-access product: cycle length in calendar months
// and the expiring entitlement it grants.
type Plan struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Code           string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Name           string    `gorm:"type:varchar(150);not null" json:"name"`
	CycleMonths    int       `gorm:"not null;default:1" json:"cycle_months"`
	EntitlementKey string    `gorm:"type:varchar(50);not null;default:'profile_publish'" json:"entitlement_key"`
	IsActive       bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Price is a purchasable amount for either a subscription plan or a bundle of
// job-post credits. ProductType is the dispatch tag for entitlement effects;
// exactly one of PlanID or Credits is meaningful per type.
type Price struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductType string    `gorm:"type:varchar(32);not null;index" json:"product_type"`
	PlanID      *uint     `gorm:"index" json:"plan_id,omitempty"`
	Credits     *int64    `gorm:"default:null" json:"credits,omitempty"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
