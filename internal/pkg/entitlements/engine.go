package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
)

var (
	// ErrPaymentNotFound is returned when the triggering payment is absent.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentNotPaid is returned when the payment is not in PAID status.
	ErrPaymentNotPaid = errors.New("payment is not in PAID status")
	// ErrPriceUnavailable is returned when the paid price is missing or inactive.
	ErrPriceUnavailable = errors.New("price is missing or inactive")
)

// Outcome classifies the effect of applying a payment.
type Outcome string

const (
	// OutcomeApplied means the entitlement effect was written.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means a replay of an expiring-access payment was
	// skipped by the updated-at guard.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeAlreadyGranted means the credit grant for this payment already
	// exists; treated as success without effect.
	OutcomeAlreadyGranted Outcome = "already_granted"
	// OutcomeUnsupported means the price carries no entitlement semantics.
	// This is a non-fatal result, not an error.
	OutcomeUnsupported Outcome = "unsupported"
)

// ApplyResult describes what a payment application did.
type ApplyResult struct {
	Outcome        Outcome    `json:"outcome"`
	EntitlementKey string     `json:"entitlement_key,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreditsGranted int64      `json:"credits_granted,omitempty"`
}

// Engine derives feature entitlements (publish access, job-post credits) from
// completed payments, exactly once per payment.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an engine from an injected repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// NewEngineFromDB creates an engine backed by GORM.
func NewEngineFromDB(db *gorm.DB) *Engine {
	return NewEngine(NewRepository(db))
}

// WithClock overrides the engine's time source. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ApplyPayment applies the entitlement effect of a PAID payment. Replays of
// the same payment are no-ops: expiring access is guarded by comparing the
// entitlement's updated-at against the payment's, credit grants by the unique
// per-payment grant row.
func (e *Engine) ApplyPayment(ctx context.Context, paymentID uint) (ApplyResult, error) {
	payment, err := e.repo.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyResult{}, ErrPaymentNotFound
		}
		return ApplyResult{}, err
	}
	if payment.Status != models.PaymentStatusPaid {
		return ApplyResult{}, ErrPaymentNotPaid
	}

	price, err := e.repo.GetPrice(ctx, payment.PriceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyResult{}, ErrPriceUnavailable
		}
		return ApplyResult{}, err
	}
	if !price.IsActive {
		return ApplyResult{}, ErrPriceUnavailable
	}

	switch price.ProductType {
	case models.ProductTypeSubscriptionPlan:
		return e.applyExpiring(ctx, payment, price)
	case models.ProductTypeJobCredits:
		return e.applyCredits(ctx, payment, price)
	default:
		log.Infof("[Entitlements] price %d has unsupported product type %q, skipping payment %d", price.ID, price.ProductType, payment.ID)
		return ApplyResult{Outcome: OutcomeUnsupported}, nil
	}
}

func (e *Engine) applyExpiring(ctx context.Context, payment *models.Payment, price *models.Price) (ApplyResult, error) {
	if price.PlanID == nil {
		return ApplyResult{}, ErrPriceUnavailable
	}
	plan, err := e.repo.GetPlan(ctx, *price.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyResult{}, ErrPriceUnavailable
		}
		return ApplyResult{}, err
	}

	now := e.now().UTC()
	existing, err := e.repo.GetEntitlement(ctx, payment.UserID, plan.EntitlementKey)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ApplyResult{}, err
	}

	// Replay guard: a payment not newer than the entitlement's last update
	// has already been applied.
	if existing != nil && !existing.UpdatedAt.Before(payment.UpdatedAt) {
		return ApplyResult{
			Outcome:        OutcomeAlreadyApplied,
			EntitlementKey: plan.EntitlementKey,
			ExpiresAt:      existing.ExpiresAt,
		}, nil
	}

	anchor := now
	if existing != nil && existing.ExpiresAt != nil && existing.ExpiresAt.After(now) {
		anchor = existing.ExpiresAt.UTC()
	}
	expiresAt := AddMonthsClamped(anchor, plan.CycleMonths)

	if err := e.repo.UpsertExpiring(ctx, payment.UserID, plan.EntitlementKey, expiresAt); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{
		Outcome:        OutcomeApplied,
		EntitlementKey: plan.EntitlementKey,
		ExpiresAt:      &expiresAt,
	}, nil
}

func (e *Engine) applyCredits(ctx context.Context, payment *models.Payment, price *models.Price) (ApplyResult, error) {
	if price.Credits == nil || *price.Credits <= 0 {
		return ApplyResult{}, ErrPriceUnavailable
	}

	created, err := e.repo.GrantCredits(ctx, &models.CreditGrant{
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Credits:   *price.Credits,
	})
	if err != nil {
		return ApplyResult{}, err
	}
	if !created {
		return ApplyResult{
			Outcome:        OutcomeAlreadyGranted,
			EntitlementKey: models.EntitlementKeyJobCredits,
		}, nil
	}
	return ApplyResult{
		Outcome:        OutcomeApplied,
		EntitlementKey: models.EntitlementKeyJobCredits,
		CreditsGranted: *price.Credits,
	}, nil
}

// Revoke sets an expiring entitlement's expiry to the given instant. Used by
// immediate cancellations and the revoke_now refund policy.
func (e *Engine) Revoke(ctx context.Context, userID uint, key string, at time.Time) error {
	return e.repo.SetExpiry(ctx, userID, key, at.UTC())
}

// Repoint moves an expiring entitlement's expiry to match an adjusted
// subscription period, keeping the two in lockstep.
func (e *Engine) Repoint(ctx context.Context, userID uint, key string, at time.Time) error {
	return e.repo.SetExpiry(ctx, userID, key, at.UTC())
}
