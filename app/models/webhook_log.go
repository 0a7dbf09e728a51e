package models

import "time"

const (
	WebhookLogStatusReceived = "received"
	WebhookLogStatusHandled  = "handled"
	WebhookLogStatusFailed   = "failed"
)

// WebhookLog stores every inbound provider event keyed uniquely by
// (provider, external_id). A second delivery of the same external id is
// detected at the insert step, before any ledger mutation occurs.
type WebhookLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_logs_provider_event,unique,priority:1" json:"provider"`
	ExternalID      string     `gorm:"type:varchar(191);not null;index:ux_webhook_logs_provider_event,unique,priority:2" json:"external_id"`
	EventType       string     `gorm:"type:varchar(100);index" json:"event_type"`
	Status          string     `gorm:"type:varchar(16);not null;default:'received';index" json:"status"`
	RawPayload      JSONMap    `gorm:"type:json" json:"raw_payload,omitempty"`
	HandledAt       *time.Time `gorm:"type:timestamp;default:null" json:"handled_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
