package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeNotification    JobType = "notification"
	JobTypeEntitlementSync JobType = "entitlement_sync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// NotificationJobPayload carries one outbound notification request for the
// external delivery collaborator.
type NotificationJobPayload struct {
	Kind           string `json:"kind"`
	UserID         uint   `json:"user_id"`
	PaymentID      uint   `json:"payment_id,omitempty"`
	InvoiceID      uint   `json:"invoice_id,omitempty"`
	InvoiceNumber  string `json:"invoice_number,omitempty"`
	SubscriptionID uint   `json:"subscription_id,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p NotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"kind":            p.Kind,
		"user_id":         p.UserID,
		"payment_id":      p.PaymentID,
		"invoice_id":      p.InvoiceID,
		"invoice_number":  p.InvoiceNumber,
		"subscription_id": p.SubscriptionID,
		"amount":          p.Amount,
	}
}

// NotificationJobPayloadFromMap creates a payload from a map
func NotificationJobPayloadFromMap(data map[string]interface{}) (*NotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// EntitlementSyncJobPayload requests a recomputation push for one user.
type EntitlementSyncJobPayload struct {
	UserID uint `json:"user_id"`
}

// ToMap converts the payload to a map for storage
func (p EntitlementSyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id": p.UserID,
	}
}

// EntitlementSyncJobPayloadFromMap creates a payload from a map
func EntitlementSyncJobPayloadFromMap(data map[string]interface{}) (*EntitlementSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload EntitlementSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
