package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/entitlements"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
)

type fakeRepo struct {
	subs   map[uint]*models.Subscription
	plans  map[uint]*models.Plan
	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:   make(map[uint]*models.Subscription),
		plans:  make(map[uint]*models.Plan),
		nextID: 1,
	}
}

func (r *fakeRepo) GetByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	for _, s := range r.subs {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	if s, ok := r.subs[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) Create(ctx context.Context, sub *models.Subscription) error {
	sub.ID = r.nextID
	r.nextID++
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *fakeRepo) Save(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *fakeRepo) GetPlan(ctx context.Context, id uint) (*models.Plan, error) {
	if p, ok := r.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeSync struct {
	revoked  []time.Time
	repoints []time.Time
}

func (f *fakeSync) Revoke(ctx context.Context, userID uint, key string, at time.Time) error {
	f.revoked = append(f.revoked, at)
	return nil
}

func (f *fakeSync) Repoint(ctx context.Context, userID uint, key string, at time.Time) error {
	f.repoints = append(f.repoints, at)
	return nil
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type harness struct {
	repo    *fakeRepo
	sync    *fakeSync
	manager *Manager
	emitted *[]string
}

func newHarness() harness {
	repo := newFakeRepo()
	repo.plans[1] = &models.Plan{ID: 1, Code: "pro-monthly", CycleMonths: 1, EntitlementKey: models.EntitlementKeyPublish}

	emitted := &[]string{}
	bus := events.NewBus()
	bus.Register("", func(ctx context.Context, ev events.BillingEvent) error {
		*emitted = append(*emitted, ev.Name)
		return nil
	})

	sync := &fakeSync{}
	m := NewManager(repo, bus, sync).WithClock(func() time.Time { return testNow })
	return harness{repo: repo, sync: sync, manager: m, emitted: emitted}
}

func TestActivateOrStartCreatesFresh(t *testing.T) {
	h := newHarness()

	sub, err := h.manager.ActivateOrStart(context.Background(), 5, 1, "stripe", "sub_1", nil)
	if err != nil {
		t.Fatalf("ActivateOrStart: %v", err)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	want := entitlements.AddMonthsClamped(testNow, 1)
	if !sub.EndsAt.Equal(want) {
		t.Fatalf("ends_at = %v, want %v", sub.EndsAt, want)
	}
	if len(*h.emitted) != 1 || (*h.emitted)[0] != events.SubscriptionActivated {
		t.Fatalf("emitted = %v, want [%s]", *h.emitted, events.SubscriptionActivated)
	}
}

func TestActivateOrStartExtendsServingFromFutureEnd(t *testing.T) {
	h := newHarness()
	future := testNow.Add(10 * 24 * time.Hour)
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusActive, StartedAt: testNow.AddDate(0, -1, 0), EndsAt: future,
	}
	h.repo.nextID = 2

	sub, err := h.manager.ActivateOrStart(context.Background(), 5, 1, "stripe", "sub_1", nil)
	if err != nil {
		t.Fatalf("ActivateOrStart: %v", err)
	}
	want := entitlements.AddMonthsClamped(future, 1)
	if !sub.EndsAt.Equal(want) {
		t.Fatalf("ends_at = %v, want extension from future end %v", sub.EndsAt, want)
	}
	if (*h.emitted)[0] != events.SubscriptionRestarted {
		t.Fatalf("emitted %v, want restarted for a serving extension", *h.emitted)
	}
}

func TestActivateOrStartRevivesLapsedFromNow(t *testing.T) {
	h := newHarness()
	past := testNow.AddDate(0, -2, 0)
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusExpired, StartedAt: past.AddDate(0, -1, 0), EndsAt: past,
	}
	h.repo.nextID = 2

	sub, err := h.manager.ActivateOrStart(context.Background(), 5, 1, "stripe", "sub_1", nil)
	if err != nil {
		t.Fatalf("ActivateOrStart: %v", err)
	}
	want := entitlements.AddMonthsClamped(testNow, 1)
	if !sub.EndsAt.Equal(want) {
		t.Fatalf("ends_at = %v, want anchor at now %v for a lapsed subscription", sub.EndsAt, want)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if (*h.emitted)[0] != events.SubscriptionActivated {
		t.Fatalf("emitted %v, want activated for a revived subscription", *h.emitted)
	}
}

func TestRenewAnchorsAtMaxOfNowAndEnd(t *testing.T) {
	tests := []struct {
		name   string
		endsAt time.Time
		want   time.Time
	}{
		{"running period anchors at future end", testNow.Add(48 * time.Hour), entitlements.AddMonthsClamped(testNow.Add(48*time.Hour), 1)},
		{"lapsed period anchors at now", testNow.Add(-48 * time.Hour), entitlements.AddMonthsClamped(testNow, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.repo.subs[1] = &models.Subscription{
				ID: 1, UserID: 5, PlanID: 1,
				Status: models.SubscriptionStatusRenewing, StartedAt: testNow.AddDate(0, -1, 0), EndsAt: tt.endsAt,
				CancelAtPeriodEnd: true,
			}
			h.repo.nextID = 2

			sub, err := h.manager.Renew(context.Background(), 5)
			if err != nil {
				t.Fatalf("Renew: %v", err)
			}
			if !sub.EndsAt.Equal(tt.want) {
				t.Fatalf("ends_at = %v, want %v", sub.EndsAt, tt.want)
			}
			if sub.CancelAtPeriodEnd {
				t.Fatal("renewal must clear the cancel flag")
			}
		})
	}
}

func TestSetCancelAtPeriodEndTransitions(t *testing.T) {
	h := newHarness()
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusActive, StartedAt: testNow.AddDate(0, -1, 0), EndsAt: testNow.Add(24 * time.Hour),
	}
	h.repo.nextID = 2

	sub, err := h.manager.SetCancelAtPeriodEnd(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("SetCancelAtPeriodEnd(true): %v", err)
	}
	if sub.Status != models.SubscriptionStatusRenewing || !sub.CancelAtPeriodEnd {
		t.Fatalf("got status=%s cancel=%v, want renewing/true", sub.Status, sub.CancelAtPeriodEnd)
	}

	sub, err = h.manager.SetCancelAtPeriodEnd(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("SetCancelAtPeriodEnd(false): %v", err)
	}
	if sub.Status != models.SubscriptionStatusActive || sub.CancelAtPeriodEnd {
		t.Fatalf("got status=%s cancel=%v, want active/false", sub.Status, sub.CancelAtPeriodEnd)
	}

	if len(*h.emitted) != 2 ||
		(*h.emitted)[0] != events.SubscriptionCancelScheduled ||
		(*h.emitted)[1] != events.SubscriptionCancelUnscheduled {
		t.Fatalf("emitted = %v", *h.emitted)
	}
}

func TestSetCancelAtPeriodEndNoChangeEmitsNothing(t *testing.T) {
	h := newHarness()
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusActive, StartedAt: testNow.AddDate(0, -1, 0), EndsAt: testNow.Add(24 * time.Hour),
	}
	h.repo.nextID = 2

	if _, err := h.manager.SetCancelAtPeriodEnd(context.Background(), 1, false); err != nil {
		t.Fatalf("SetCancelAtPeriodEnd: %v", err)
	}
	if len(*h.emitted) != 0 {
		t.Fatalf("no-op toggle must not emit, got %v", *h.emitted)
	}
}

func TestCancelNowRejectsNonServing(t *testing.T) {
	h := newHarness()
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusExpired, StartedAt: testNow.AddDate(0, -2, 0), EndsAt: testNow.AddDate(0, -1, 0),
	}
	h.repo.nextID = 2

	_, err := h.manager.CancelNow(context.Background(), 1)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelNowRevokesEntitlement(t *testing.T) {
	h := newHarness()
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusRenewing, StartedAt: testNow.AddDate(0, -1, 0), EndsAt: testNow.Add(24 * time.Hour),
		CancelAtPeriodEnd: true,
	}
	h.repo.nextID = 2

	sub, err := h.manager.CancelNow(context.Background(), 1)
	if err != nil {
		t.Fatalf("CancelNow: %v", err)
	}
	if sub.Status != models.SubscriptionStatusCanceled || !sub.EndsAt.Equal(testNow) {
		t.Fatalf("got status=%s ends_at=%v, want canceled at now", sub.Status, sub.EndsAt)
	}
	if len(h.sync.revoked) != 1 || !h.sync.revoked[0].Equal(testNow) {
		t.Fatalf("entitlement revoke = %v, want one revoke at now", h.sync.revoked)
	}
	if (*h.emitted)[len(*h.emitted)-1] != events.SubscriptionCanceled {
		t.Fatalf("emitted = %v, want canceled last", *h.emitted)
	}
}

func TestAdjustEndsAtValidatesAndRepoints(t *testing.T) {
	h := newHarness()
	started := testNow.AddDate(0, -1, 0)
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusActive, StartedAt: started, EndsAt: testNow.Add(24 * time.Hour),
	}
	h.repo.nextID = 2

	if _, err := h.manager.AdjustEndsAt(context.Background(), 1, started.Add(-time.Hour), nil); !errors.Is(err, ErrEndsBeforeStart) {
		t.Fatalf("expected ErrEndsBeforeStart, got %v", err)
	}

	newEnd := testNow.Add(14 * 24 * time.Hour)
	sub, err := h.manager.AdjustEndsAt(context.Background(), 1, newEnd, &newEnd)
	if err != nil {
		t.Fatalf("AdjustEndsAt: %v", err)
	}
	if !sub.EndsAt.Equal(newEnd) {
		t.Fatalf("ends_at = %v, want %v", sub.EndsAt, newEnd)
	}
	if len(h.sync.repoints) != 1 || !h.sync.repoints[0].Equal(newEnd) {
		t.Fatalf("repoints = %v, want one at %v", h.sync.repoints, newEnd)
	}
}

func TestMarkExpired(t *testing.T) {
	h := newHarness()
	renewal := testNow.Add(-time.Hour)
	h.repo.subs[1] = &models.Subscription{
		ID: 1, UserID: 5, PlanID: 1,
		Status: models.SubscriptionStatusRenewing, StartedAt: testNow.AddDate(0, -1, 0), EndsAt: renewal,
		RenewalAt: &renewal, CancelAtPeriodEnd: true,
	}
	h.repo.nextID = 2

	sub, err := h.manager.MarkExpired(context.Background(), 1)
	if err != nil {
		t.Fatalf("MarkExpired: %v", err)
	}
	if sub.Status != models.SubscriptionStatusExpired || sub.RenewalAt != nil {
		t.Fatalf("got status=%s renewal=%v, want expired with no renewal", sub.Status, sub.RenewalAt)
	}
}
