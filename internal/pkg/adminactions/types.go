package adminactions

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotAdmin is returned when the acting user lacks the admin role.
	ErrNotAdmin = errors.New("administrator role required")
	// ErrStaleData is returned on an optimistic-concurrency token mismatch.
	ErrStaleData = errors.New("data changed, reload and retry")
	// ErrNotRefundable flags refund requests against non-refundable payments.
	ErrNotRefundable = errors.New("payment is not refundable in its current state")
	// ErrRefundCeiling flags refund requests above the remaining refundable amount.
	ErrRefundCeiling = errors.New("refund amount exceeds remaining refundable amount")
)

// Result is the uniform outcome of every admin workflow. Nothing throws past
// the workflow boundary: failures of any kind land in Error, and replay hits
// (idempotency key already processed) are success with Idempotent set.
type Result struct {
	OK         bool                   `json:"ok"`
	Idempotent bool                   `json:"idempotent,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func failure(err error) Result {
	return Result{OK: false, Error: err.Error()}
}

// RefundInput is the operator request to refund part or all of a payment.
type RefundInput struct {
	ID             uint   `json:"id" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=5,max=2000"`
	UpdatedAt      string `json:"updated_at" validate:"required"`
	Policy         string `json:"policy" validate:"required,oneof=revoke_now keep_until_end"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// Refund entitlement policies.
const (
	PolicyRevokeNow    = "revoke_now"
	PolicyKeepUntilEnd = "keep_until_end"
)

// MarkFailedInput marks a pending payment as failed.
type MarkFailedInput struct {
	ID             uint   `json:"id" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=5,max=2000"`
	UpdatedAt      string `json:"updated_at" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// CancelNowInput cancels a subscription immediately.
type CancelNowInput struct {
	ID             uint   `json:"id" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=5,max=2000"`
	UpdatedAt      string `json:"updated_at" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// ToggleCancelInput schedules or unschedules a period-end cancellation.
type ToggleCancelInput struct {
	ID             uint   `json:"id" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=5,max=2000"`
	UpdatedAt      string `json:"updated_at" validate:"required"`
	Cancel         *bool  `json:"cancel" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// AdjustEndsAtInput overrides a subscription's period end.
type AdjustEndsAtInput struct {
	ID             uint   `json:"id" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=5,max=2000"`
	UpdatedAt      string `json:"updated_at" validate:"required"`
	NewEndsAt      string `json:"new_ends_at" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// RecomputeInput re-derives a user's entitlements from their subscription.
type RecomputeInput struct {
	UserID         uint   `json:"user_id" validate:"required"`
	SubscriptionID uint   `json:"subscription_id" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=5,max=2000"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// firstValidationMessage surfaces the first failing field verbatim, the way
// operators see it in the admin UI.
func firstValidationMessage(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s failed validation on %q", e.Field(), e.Tag())
	}
	return err
}

// parseISO parses a client-supplied ISO/RFC3339 timestamp.
func parseISO(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO timestamp %q", value)
	}
	return t.UTC(), nil
}

// tokenMatches compares the optimistic-concurrency token with second
// precision; RFC3339 round-trips drop sub-second digits.
func tokenMatches(rowUpdatedAt time.Time, expected time.Time) bool {
	return rowUpdatedAt.UTC().Truncate(time.Second).Equal(expected.UTC().Truncate(time.Second))
}
