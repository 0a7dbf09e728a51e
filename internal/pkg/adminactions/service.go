package adminactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
	"github.com/LukasWeidner/TalentFox/internal/pkg/notifications"
	"github.com/LukasWeidner/TalentFox/internal/pkg/subscriptions"
)

// Service hosts the operator reconciliation workflows. Every entry point
// validates the actor and input, honors idempotency keys via the audit log,
// checks the caller's freshness token, and converts every failure into a
// uniform Result instead of letting it escape.
type Service struct {
	store    Store
	subs     *subscriptions.Manager
	sync     subscriptions.EntitlementSync
	notifier notifications.Notifier
	bus      *events.Bus
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates the admin workflow service.
func NewService(store Store, subs *subscriptions.Manager, sync subscriptions.EntitlementSync, notifier notifications.Notifier, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		subs:     subs,
		sync:     sync,
		notifier: notifier,
		bus:      bus,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithClock overrides the service's time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// recoverInto converts a panic into a generic retry message; the cause is
// logged server-side with full context by the deferred caller.
func recoverInto(res *Result, what string) {
	if r := recover(); r != nil {
		log.Errorf("[AdminActions] panic in %s: %v", what, r)
		*res = Result{OK: false, Error: "unexpected error, please retry"}
	}
}

// requireAdmin loads the actor and checks the admin role.
func (s *Service) requireAdmin(ctx context.Context, actorID uint) error {
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAdmin
		}
		return err
	}
	if !actor.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

// dedupe reports whether the idempotency key has already produced an audit
// row, meaning the operation was applied and must not be reprocessed.
func (s *Service) dedupe(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	_, err := s.store.FindAuditByKey(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func keyPtr(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}

// auditRejection records an attempted-but-invalid action so operators can
// trace it. Failures to write the rejection row are logged, not surfaced.
func (s *Service) auditRejection(ctx context.Context, actorID uint, resourceType string, resourceID uint, action, reason string, cause error) {
	row := &models.AuditLog{
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action + "_rejected",
		Reason:       reason,
		Metadata:     models.JSONMap{"error": cause.Error()},
	}
	if err := s.store.CreateAudit(ctx, row); err != nil {
		log.Errorf("[AdminActions] could not audit rejection of %s on %s %d: %v", action, resourceType, resourceID, err)
	}
}

// CancelNow terminates a subscription immediately on operator request.
func (s *Service) CancelNow(ctx context.Context, actorID uint, in CancelNowInput) (res Result) {
	defer recoverInto(&res, "CancelNow")

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return failure(err)
	}
	if err := s.validate.Struct(in); err != nil {
		return failure(firstValidationMessage(err))
	}
	expected, err := parseISO(in.UpdatedAt)
	if err != nil {
		return failure(err)
	}
	if hit, err := s.dedupe(ctx, in.IdempotencyKey); err != nil {
		return failure(err)
	} else if hit {
		return Result{OK: true, Idempotent: true}
	}

	var updated *models.Subscription
	var subStatus string
	err = s.store.WithTx(ctx, func(tx Store) error {
		sub, err := tx.GetSubscription(ctx, in.ID)
		if err != nil {
			return err
		}
		if !tokenMatches(sub.UpdatedAt, expected) {
			return ErrStaleData
		}
		if err := tx.ClaimSubscription(ctx, sub.ID, sub.UpdatedAt); err != nil {
			return err
		}
		subStatus = sub.Status

		before, _ := models.SnapshotOf(sub)
		updated, err = s.subs.WithRepository(tx.SubscriptionRepository()).CancelNow(ctx, sub.ID)
		if err != nil {
			return err
		}
		after, _ := models.SnapshotOf(updated)

		return tx.CreateAudit(ctx, &models.AuditLog{
			ActorID:        actorID,
			ResourceType:   "subscription",
			ResourceID:     sub.ID,
			Action:         "subscription_cancel_now",
			Reason:         in.Reason,
			Before:         before,
			After:          after,
			IdempotencyKey: keyPtr(in.IdempotencyKey),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, subscriptions.ErrSubscriptionNotFound):
			return failure(errors.New("subscription not found"))
		case errors.Is(err, subscriptions.ErrInvalidTransition):
			s.auditRejection(ctx, actorID, "subscription", in.ID, "subscription_cancel_now", in.Reason, err)
			return failure(fmt.Errorf("cannot cancel a %s subscription", subStatus))
		default:
			return failure(err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.CancelImmediate(ctx, updated.UserID, updated.ID); err != nil {
			log.Errorf("[AdminActions] cancel-immediate notification for subscription %d: %v", updated.ID, err)
		}
	}
	return Result{OK: true, Details: map[string]interface{}{"status": updated.Status, "ends_at": updated.EndsAt}}
}

// ToggleCancelAtPeriodEnd schedules or unschedules a lapse at period end.
// Toggling to the current value is a no-op that still writes an audit entry.
func (s *Service) ToggleCancelAtPeriodEnd(ctx context.Context, actorID uint, in ToggleCancelInput) (res Result) {
	defer recoverInto(&res, "ToggleCancelAtPeriodEnd")

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return failure(err)
	}
	if err := s.validate.Struct(in); err != nil {
		return failure(firstValidationMessage(err))
	}
	expected, err := parseISO(in.UpdatedAt)
	if err != nil {
		return failure(err)
	}
	if hit, err := s.dedupe(ctx, in.IdempotencyKey); err != nil {
		return failure(err)
	} else if hit {
		return Result{OK: true, Idempotent: true}
	}

	flag := *in.Cancel
	var updated *models.Subscription
	var subStatus string
	err = s.store.WithTx(ctx, func(tx Store) error {
		sub, err := tx.GetSubscription(ctx, in.ID)
		if err != nil {
			return err
		}
		if !tokenMatches(sub.UpdatedAt, expected) {
			return ErrStaleData
		}
		if err := tx.ClaimSubscription(ctx, sub.ID, sub.UpdatedAt); err != nil {
			return err
		}
		subStatus = sub.Status

		before, _ := models.SnapshotOf(sub)
		updated, err = s.subs.WithRepository(tx.SubscriptionRepository()).SetCancelAtPeriodEnd(ctx, sub.ID, flag)
		if err != nil {
			return err
		}
		after, _ := models.SnapshotOf(updated)

		return tx.CreateAudit(ctx, &models.AuditLog{
			ActorID:        actorID,
			ResourceType:   "subscription",
			ResourceID:     sub.ID,
			Action:         "subscription_toggle_cancel",
			Reason:         in.Reason,
			Before:         before,
			After:          after,
			Metadata:       models.JSONMap{"cancel": flag},
			IdempotencyKey: keyPtr(in.IdempotencyKey),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, subscriptions.ErrSubscriptionNotFound):
			return failure(errors.New("subscription not found"))
		case errors.Is(err, subscriptions.ErrInvalidTransition):
			s.auditRejection(ctx, actorID, "subscription", in.ID, "subscription_toggle_cancel", in.Reason, err)
			return failure(fmt.Errorf("cannot toggle period-end cancellation on a %s subscription", subStatus))
		default:
			return failure(err)
		}
	}

	if flag && s.notifier != nil {
		if err := s.notifier.CancelScheduled(ctx, updated.UserID, updated.ID); err != nil {
			log.Errorf("[AdminActions] cancel-scheduled notification for subscription %d: %v", updated.ID, err)
		}
	}
	return Result{OK: true, Details: map[string]interface{}{"status": updated.Status, "cancel_at_period_end": updated.CancelAtPeriodEnd}}
}

// AdjustEndsAt overrides the subscription's period end (goodwill extensions,
// corrections) and keeps the linked entitlement expiry in lockstep.
func (s *Service) AdjustEndsAt(ctx context.Context, actorID uint, in AdjustEndsAtInput) (res Result) {
	defer recoverInto(&res, "AdjustEndsAt")

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return failure(err)
	}
	if err := s.validate.Struct(in); err != nil {
		return failure(firstValidationMessage(err))
	}
	expected, err := parseISO(in.UpdatedAt)
	if err != nil {
		return failure(err)
	}
	newEndsAt, err := parseISO(in.NewEndsAt)
	if err != nil {
		return failure(err)
	}
	if hit, err := s.dedupe(ctx, in.IdempotencyKey); err != nil {
		return failure(err)
	} else if hit {
		return Result{OK: true, Idempotent: true}
	}

	var updated *models.Subscription
	err = s.store.WithTx(ctx, func(tx Store) error {
		sub, err := tx.GetSubscription(ctx, in.ID)
		if err != nil {
			return err
		}
		if !tokenMatches(sub.UpdatedAt, expected) {
			return ErrStaleData
		}
		if err := tx.ClaimSubscription(ctx, sub.ID, sub.UpdatedAt); err != nil {
			return err
		}

		var renewalAt *time.Time
		if sub.IsServing() {
			renewalAt = &newEndsAt
		}

		before, _ := models.SnapshotOf(sub)
		updated, err = s.subs.WithRepository(tx.SubscriptionRepository()).AdjustEndsAt(ctx, sub.ID, newEndsAt, renewalAt)
		if err != nil {
			return err
		}
		after, _ := models.SnapshotOf(updated)

		return tx.CreateAudit(ctx, &models.AuditLog{
			ActorID:        actorID,
			ResourceType:   "subscription",
			ResourceID:     sub.ID,
			Action:         "subscription_adjust_ends_at",
			Reason:         in.Reason,
			Before:         before,
			After:          after,
			Metadata:       models.JSONMap{"new_ends_at": in.NewEndsAt},
			IdempotencyKey: keyPtr(in.IdempotencyKey),
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
			return failure(errors.New("subscription not found"))
		}
		return failure(err)
	}

	return Result{OK: true, Details: map[string]interface{}{"ends_at": updated.EndsAt}}
}

// RecomputeEntitlements re-derives a user's expiring entitlement from their
// subscription state and requests an entitlement-sync push.
func (s *Service) RecomputeEntitlements(ctx context.Context, actorID uint, in RecomputeInput) (res Result) {
	defer recoverInto(&res, "RecomputeEntitlements")

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return failure(err)
	}
	if err := s.validate.Struct(in); err != nil {
		return failure(firstValidationMessage(err))
	}
	if hit, err := s.dedupe(ctx, in.IdempotencyKey); err != nil {
		return failure(err)
	} else if hit {
		return Result{OK: true, Idempotent: true}
	}

	sub, err := s.store.GetSubscription(ctx, in.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(errors.New("subscription not found"))
		}
		return failure(err)
	}
	if sub.UserID != in.UserID {
		return failure(errors.New("subscription does not belong to the given user"))
	}

	plan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return failure(err)
	}

	now := s.now().UTC()
	if s.sync != nil {
		if sub.IsServing() && sub.EndsAt.After(now) {
			err = s.sync.Repoint(ctx, sub.UserID, plan.EntitlementKey, sub.EndsAt)
		} else {
			err = s.sync.Revoke(ctx, sub.UserID, plan.EntitlementKey, now)
		}
		if err != nil {
			return failure(err)
		}
	}

	if err := s.store.CreateAudit(ctx, &models.AuditLog{
		ActorID:        actorID,
		ResourceType:   "subscription",
		ResourceID:     sub.ID,
		Action:         "entitlements_recompute",
		Reason:         in.Reason,
		Metadata:       models.JSONMap{"user_id": in.UserID, "ends_at": sub.EndsAt},
		IdempotencyKey: keyPtr(in.IdempotencyKey),
	}); err != nil {
		return failure(err)
	}

	if s.notifier != nil {
		if err := s.notifier.EntitlementSync(ctx, sub.UserID); err != nil {
			log.Errorf("[AdminActions] entitlement-sync request for user %d: %v", sub.UserID, err)
		}
	}
	return Result{OK: true}
}
