package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/entitlements"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
)

var (
	// ErrSubscriptionNotFound is returned when the target row is absent.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrPlanNotFound is returned when the referenced plan is absent.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrInvalidTransition is returned when the requested transition is not
	// legal from the subscription's current status.
	ErrInvalidTransition = errors.New("invalid subscription state transition")
	// ErrEndsBeforeStart guards the ends_at >= started_at invariant.
	ErrEndsBeforeStart = errors.New("ends_at must not be before started_at")
)

// EntitlementSync is the slice of the entitlement engine the lifecycle
// manager needs to keep expiring access in lockstep with the subscription.
type EntitlementSync interface {
	Revoke(ctx context.Context, userID uint, key string, at time.Time) error
	Repoint(ctx context.Context, userID uint, key string, at time.Time) error
}

// Manager owns the subscription state machine:
// (none) -> active -> renewing -> {canceled, expired}, renewing -> active,
// any serving state -> canceled via immediate admin action.
type Manager struct {
	repo Repository
	bus  *events.Bus
	sync EntitlementSync
	now  func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(repo Repository, bus *events.Bus, sync EntitlementSync) *Manager {
	return &Manager{repo: repo, bus: bus, sync: sync, now: time.Now}
}

// NewManagerFromDB creates a manager backed by GORM.
func NewManagerFromDB(db *gorm.DB, bus *events.Bus, sync EntitlementSync) *Manager {
	return NewManager(NewRepository(db), bus, sync)
}

// WithClock overrides the manager's time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithRepository returns a copy of the manager bound to the given repository,
// keeping bus, sync and clock. Callers use this to run a lifecycle transition
// inside their own transaction.
func (m *Manager) WithRepository(repo Repository) *Manager {
	cp := *m
	cp.repo = repo
	return &cp
}

// ActivateOrStart creates a fresh subscription anchored at startAt (or now),
// or extends an existing one from max(now, ends_at). The cancel flag is reset
// either way. Emits ACTIVATED for fresh/previously-lapsed subscriptions and
// RESTARTED when a serving subscription is extended.
func (m *Manager) ActivateOrStart(ctx context.Context, userID, planID uint, provider, providerRef string, startAt *time.Time) (*models.Subscription, error) {
	plan, err := m.repo.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	now := m.now().UTC()
	sub, err := m.repo.GetByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if sub == nil {
		start := now
		if startAt != nil {
			start = startAt.UTC()
		}
		ends := entitlements.AddMonthsClamped(start, plan.CycleMonths)
		sub = &models.Subscription{
			UserID:      userID,
			PlanID:      planID,
			Provider:    provider,
			ProviderRef: providerRef,
			Status:      models.SubscriptionStatusActive,
			StartedAt:   start,
			EndsAt:      ends,
			RenewalAt:   &ends,
		}
		if err := m.repo.Create(ctx, sub); err != nil {
			return nil, err
		}
		m.emit(ctx, events.SubscriptionActivated, sub)
		return sub, nil
	}

	wasServing := sub.IsServing()
	anchor := now
	if sub.EndsAt.After(now) {
		anchor = sub.EndsAt.UTC()
	}
	ends := entitlements.AddMonthsClamped(anchor, plan.CycleMonths)

	sub.PlanID = planID
	sub.Provider = provider
	sub.ProviderRef = providerRef
	sub.Status = models.SubscriptionStatusActive
	sub.EndsAt = ends
	sub.RenewalAt = &ends
	sub.CancelAtPeriodEnd = false
	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	name := events.SubscriptionActivated
	if wasServing {
		name = events.SubscriptionRestarted
	}
	m.emit(ctx, name, sub)
	return sub, nil
}

// Renew extends the current period by one plan cycle from max(now, ends_at):
// a lapsed period anchors at now, a running one at its future end, so no time
// is lost or double-counted. Serving status is preserved and the cancel flag
// cleared.
func (m *Manager) Renew(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := m.loadByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := m.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	now := m.now().UTC()
	anchor := now
	if sub.EndsAt.After(now) {
		anchor = sub.EndsAt.UTC()
	}
	ends := entitlements.AddMonthsClamped(anchor, plan.CycleMonths)

	sub.EndsAt = ends
	sub.RenewalAt = &ends
	sub.CancelAtPeriodEnd = false
	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	m.emit(ctx, events.SubscriptionRenewed, sub)
	return sub, nil
}

// MarkExpired flags an unrenewed subscription as lapsed. Used by the external
// period-end sweep; the cancel flag is deliberately left untouched.
func (m *Manager) MarkExpired(ctx context.Context, subID uint) (*models.Subscription, error) {
	sub, err := m.loadByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatusExpired
	sub.RenewalAt = nil
	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	m.emit(ctx, events.SubscriptionExpired, sub)
	return sub, nil
}

// SetCancelAtPeriodEnd schedules or unschedules a lapse at period end. The
// flag is only legal while the subscription is serving: setting it moves
// active to renewing, clearing it moves renewing back to active. EndsAt never
// changes here.
func (m *Manager) SetCancelAtPeriodEnd(ctx context.Context, subID uint, flag bool) (*models.Subscription, error) {
	sub, err := m.loadByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if !sub.IsServing() {
		return nil, ErrInvalidTransition
	}

	changed := sub.CancelAtPeriodEnd != flag
	sub.CancelAtPeriodEnd = flag
	if flag {
		sub.Status = models.SubscriptionStatusRenewing
	} else {
		sub.Status = models.SubscriptionStatusActive
	}
	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	name := events.SubscriptionCancelUnscheduled
	if flag {
		name = events.SubscriptionCancelScheduled
	}
	if changed {
		m.emit(ctx, name, sub)
	}
	return sub, nil
}

// CancelNow terminates a serving subscription immediately: status canceled,
// ends_at pulled to now, renewal and cancel flag cleared, and the linked
// expiring entitlement revoked. Any other starting state is rejected with
// ErrInvalidTransition so the caller can audit the attempt.
func (m *Manager) CancelNow(ctx context.Context, subID uint) (*models.Subscription, error) {
	sub, err := m.loadByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if !sub.IsServing() {
		return nil, ErrInvalidTransition
	}

	now := m.now().UTC()
	sub.Status = models.SubscriptionStatusCanceled
	sub.EndsAt = now
	sub.RenewalAt = nil
	sub.CancelAtPeriodEnd = false
	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := m.revokeEntitlement(ctx, sub, now); err != nil {
		log.Errorf("[Subscriptions] entitlement revoke after cancel of %d failed: %v", sub.ID, err)
	}
	m.emit(ctx, events.SubscriptionCanceled, sub)
	return sub, nil
}

// AdjustEndsAt overrides the period end (goodwill extension or correction)
// and re-points the linked entitlement's expiry to match.
func (m *Manager) AdjustEndsAt(ctx context.Context, subID uint, newEndsAt time.Time, newRenewalAt *time.Time) (*models.Subscription, error) {
	sub, err := m.loadByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	newEndsAt = newEndsAt.UTC()
	if newEndsAt.Before(sub.StartedAt) {
		return nil, ErrEndsBeforeStart
	}

	sub.EndsAt = newEndsAt
	if newRenewalAt != nil {
		t := newRenewalAt.UTC()
		sub.RenewalAt = &t
	} else {
		sub.RenewalAt = nil
	}
	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := m.repointEntitlement(ctx, sub, newEndsAt); err != nil {
		log.Errorf("[Subscriptions] entitlement repoint after adjust of %d failed: %v", sub.ID, err)
	}
	m.emit(ctx, events.SubscriptionPeriodAdjusted, sub)
	return sub, nil
}

func (m *Manager) loadByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := m.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (m *Manager) loadByID(ctx context.Context, subID uint) (*models.Subscription, error) {
	sub, err := m.repo.GetByID(ctx, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (m *Manager) entitlementKey(ctx context.Context, sub *models.Subscription) (string, error) {
	plan, err := m.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return "", err
	}
	return plan.EntitlementKey, nil
}

func (m *Manager) revokeEntitlement(ctx context.Context, sub *models.Subscription, at time.Time) error {
	if m.sync == nil {
		return nil
	}
	key, err := m.entitlementKey(ctx, sub)
	if err != nil {
		return err
	}
	return m.sync.Revoke(ctx, sub.UserID, key, at)
}

func (m *Manager) repointEntitlement(ctx context.Context, sub *models.Subscription, at time.Time) error {
	if m.sync == nil {
		return nil
	}
	key, err := m.entitlementKey(ctx, sub)
	if err != nil {
		return err
	}
	return m.sync.Repoint(ctx, sub.UserID, key, at)
}

func (m *Manager) emit(ctx context.Context, name string, sub *models.Subscription) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, events.BillingEvent{
		Name:           name,
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		OccurredAt:     m.now().UTC(),
		Subscription: events.SnapshotFrom(
			sub.ID, sub.PlanID, sub.Status,
			sub.StartedAt, sub.EndsAt, sub.RenewalAt, sub.CancelAtPeriodEnd,
		),
	})
}
