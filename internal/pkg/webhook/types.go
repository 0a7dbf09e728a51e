package webhook

import (
	"fmt"
	"strings"

	"github.com/LukasWeidner/TalentFox/app/models"
)

// Event is the normalized provider payment event. Signature verification and
// checkout-session resolution happen in the provider adapter before this is
// constructed; the ingestion service only applies the internal effect.
type Event struct {
	Provider          string         `json:"provider" validate:"required"`
	ExternalID        string         `json:"external_id" validate:"required"`
	ProviderRef       string         `json:"provider_ref" validate:"required"`
	Status            string         `json:"status" validate:"required,oneof=PAID PENDING FAILED REFUNDED"`
	Amount            int64          `json:"amount" validate:"gte=0"`
	Currency          string         `json:"currency" validate:"required,len=3"`
	RawPayload        models.JSONMap `json:"raw_payload"`
	UserID            uint           `json:"user_id" validate:"required"`
	PriceID           uint           `json:"price_id"`
	CheckoutSessionID string         `json:"checkout_session_id"`
	Signature         string         `json:"signature,omitempty"`
	EventType         string         `json:"event_type,omitempty"`
}

// Result reports what ingestion did. Idempotent=true means the event was a
// duplicate delivery and nothing was mutated.
type Result struct {
	Idempotent    bool   `json:"idempotent"`
	PaymentID     uint   `json:"payment_id,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	InvoiceID     uint   `json:"invoice_id,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
}

// MapProviderStatus converts the provider's event status to the internal
// payment status.
func MapProviderStatus(status string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID":
		return models.PaymentStatusPaid, nil
	case "PENDING":
		return models.PaymentStatusPending, nil
	case "FAILED":
		return models.PaymentStatusFailed, nil
	case "REFUNDED":
		return models.PaymentStatusRefunded, nil
	default:
		return "", fmt.Errorf("unknown provider payment status %q", status)
	}
}
