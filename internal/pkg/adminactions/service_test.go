package adminactions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
	"github.com/LukasWeidner/TalentFox/internal/pkg/subscriptions"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	users      map[uint]*models.User
	payments   map[uint]*models.Payment
	saleByPay  map[uint]*models.Invoice
	subs       map[uint]*models.Subscription
	plans      map[uint]*models.Plan
	prices     map[uint]*models.Price
	audits     []*models.AuditLog
	auditByKey map[string]*models.AuditLog
	nextInvID  uint
	invCounter int
	refundInvs []*models.Invoice

	failAudit       bool
	afterGetPayment func()
	afterGetSub     func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[uint]*models.User),
		payments:   make(map[uint]*models.Payment),
		saleByPay:  make(map[uint]*models.Invoice),
		subs:       make(map[uint]*models.Subscription),
		plans:      make(map[uint]*models.Plan),
		prices:     make(map[uint]*models.Price),
		auditByKey: make(map[string]*models.AuditLog),
		nextInvID:  100,
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	for k, v := range s.users {
		u := *v
		cp.users[k] = &u
	}
	for k, v := range s.payments {
		p := *v
		cp.payments[k] = &p
	}
	for k, v := range s.saleByPay {
		i := *v
		cp.saleByPay[k] = &i
	}
	for k, v := range s.subs {
		sub := *v
		cp.subs[k] = &sub
	}
	for k, v := range s.plans {
		p := *v
		cp.plans[k] = &p
	}
	for k, v := range s.prices {
		p := *v
		cp.prices[k] = &p
	}
	cp.audits = append([]*models.AuditLog(nil), s.audits...)
	for k, v := range s.auditByKey {
		cp.auditByKey[k] = v
	}
	cp.refundInvs = append([]*models.Invoice(nil), s.refundInvs...)
	cp.nextInvID = s.nextInvID
	cp.invCounter = s.invCounter
	cp.failAudit = s.failAudit
	cp.afterGetPayment = s.afterGetPayment
	cp.afterGetSub = s.afterGetSub
	return cp
}

// WithTx rolls the whole store back when fn fails, like the gorm transaction.
func (s *fakeStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		*s = *snap
		return err
	}
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	if p, ok := s.payments[id]; ok {
		cp := *p
		if s.afterGetPayment != nil {
			h := s.afterGetPayment
			s.afterGetPayment = nil
			h()
		}
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) SavePaymentIf(ctx context.Context, p *models.Payment, loadedAt time.Time) error {
	stored, ok := s.payments[p.ID]
	if !ok || !stored.UpdatedAt.Equal(loadedAt) {
		return ErrStaleData
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *fakeStore) GetInvoiceForPayment(ctx context.Context, paymentID uint) (*models.Invoice, error) {
	if inv, ok := s.saleByPay[paymentID]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) SaveInvoice(ctx context.Context, inv *models.Invoice) error {
	if inv.PaymentID != nil {
		cp := *inv
		s.saleByPay[*inv.PaymentID] = &cp
	}
	return nil
}

func (s *fakeStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	inv.ID = s.nextInvID
	s.nextInvID++
	s.refundInvs = append(s.refundInvs, inv)
	return nil
}

func (s *fakeStore) AllocateNumber(ctx context.Context, invoiceID uint, issuedAt time.Time) (string, error) {
	s.invCounter++
	return fmt.Sprintf("INV-%s-%04d", issuedAt.UTC().Format("20060102"), s.invCounter), nil
}

func (s *fakeStore) GetSubscription(ctx context.Context, id uint) (*models.Subscription, error) {
	if sub, ok := s.subs[id]; ok {
		cp := *sub
		if s.afterGetSub != nil {
			h := s.afterGetSub
			s.afterGetSub = nil
			h()
		}
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) ClaimSubscription(ctx context.Context, id uint, loadedAt time.Time) error {
	stored, ok := s.subs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if !stored.UpdatedAt.Equal(loadedAt) {
		return ErrStaleData
	}
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeStore) SubscriptionRepository() subscriptions.Repository {
	return subRepo{store: s}
}

func (s *fakeStore) GetPlan(ctx context.Context, id uint) (*models.Plan, error) {
	if p, ok := s.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) GetPrice(ctx context.Context, id uint) (*models.Price, error) {
	if p, ok := s.prices[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) FindAuditByKey(ctx context.Context, key string) (*models.AuditLog, error) {
	if row, ok := s.auditByKey[key]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) CreateAudit(ctx context.Context, row *models.AuditLog) error {
	if s.failAudit {
		return fmt.Errorf("audit insert failed")
	}
	s.audits = append(s.audits, row)
	if row.IdempotencyKey != nil {
		s.auditByKey[*row.IdempotencyKey] = row
	}
	return nil
}

func (s *fakeStore) lastAudit() *models.AuditLog {
	if len(s.audits) == 0 {
		return nil
	}
	return s.audits[len(s.audits)-1]
}

// subRepo adapts the fake store to the lifecycle manager's repository so both
// see the same subscription rows.
type subRepo struct {
	store *fakeStore
}

func (r subRepo) GetByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	for _, sub := range r.store.subs {
		if sub.UserID == userID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r subRepo) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	return r.store.GetSubscription(ctx, id)
}

func (r subRepo) Create(ctx context.Context, sub *models.Subscription) error {
	cp := *sub
	r.store.subs[sub.ID] = &cp
	return nil
}

func (r subRepo) Save(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	cp := *sub
	r.store.subs[sub.ID] = &cp
	return nil
}

func (r subRepo) GetPlan(ctx context.Context, id uint) (*models.Plan, error) {
	return r.store.GetPlan(ctx, id)
}

type fakeSync struct {
	revokes  int
	repoints int
}

func (f *fakeSync) Revoke(ctx context.Context, userID uint, key string, at time.Time) error {
	f.revokes++
	return nil
}

func (f *fakeSync) Repoint(ctx context.Context, userID uint, key string, at time.Time) error {
	f.repoints++
	return nil
}

type recordingNotifier struct {
	refunds    int
	failures   int
	cancels    int
	scheduled  int
	syncPushes int
}

func (n *recordingNotifier) PaymentFailed(ctx context.Context, userID, paymentID uint) error {
	n.failures++
	return nil
}

func (n *recordingNotifier) RefundIssued(ctx context.Context, userID, paymentID uint, amount int64) error {
	n.refunds++
	return nil
}

func (n *recordingNotifier) InvoiceReady(ctx context.Context, userID, invoiceID uint, number string) error {
	return nil
}

func (n *recordingNotifier) CancelImmediate(ctx context.Context, userID, subscriptionID uint) error {
	n.cancels++
	return nil
}

func (n *recordingNotifier) CancelScheduled(ctx context.Context, userID, subscriptionID uint) error {
	n.scheduled++
	return nil
}

func (n *recordingNotifier) EntitlementSync(ctx context.Context, userID uint) error {
	n.syncPushes++
	return nil
}

type harness struct {
	store    *fakeStore
	sync     *fakeSync
	notifier *recordingNotifier
	svc      *Service
	emitted  *[]string
}

func newHarness() harness {
	store := newFakeStore()
	store.users[1] = &models.User{ID: 1, Name: "ops", Email: "ops@example.com", Role: models.ROLE_ADMIN, Status: models.STATUS_ACTIVE}
	store.users[2] = &models.User{ID: 2, Name: "joe", Email: "joe@example.com", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}

	emitted := &[]string{}
	bus := events.NewBus()
	bus.Register("", func(ctx context.Context, ev events.BillingEvent) error {
		*emitted = append(*emitted, ev.Name)
		return nil
	})

	sync := &fakeSync{}
	notifier := &recordingNotifier{}
	subs := subscriptions.NewManager(subRepo{store: store}, bus, sync).
		WithClock(func() time.Time { return testNow })
	svc := NewService(store, subs, sync, notifier, bus).
		WithClock(func() time.Time { return testNow })

	return harness{store: store, sync: sync, notifier: notifier, svc: svc, emitted: emitted}
}

func (h harness) seedPaidPayment() *models.Payment {
	p := &models.Payment{
		ID: 1, Provider: "stripe", ProviderRef: "pi_1",
		UserID: 2, PriceID: 10,
		Status: models.PaymentStatusPaid, Amount: 1_000_000, Currency: "EUR",
		UpdatedAt: testNow.Add(-time.Hour),
	}
	h.store.payments[1] = p

	pid := p.ID
	number := "INV-20260829-0001"
	h.store.saleByPay[1] = &models.Invoice{
		ID: 50, UserID: 2, PaymentID: &pid,
		Type: models.InvoiceTypeSale, Status: models.InvoiceStatusPaid,
		Total: p.Amount, Currency: "EUR", Number: &number, IssuedAt: testNow.Add(-24 * time.Hour),
	}
	return p
}

func token(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func refundInput(p *models.Payment, amount int64) RefundInput {
	return RefundInput{
		ID:        p.ID,
		Reason:    "customer complaint, goodwill refund",
		UpdatedAt: token(p.UpdatedAt),
		Policy:    PolicyKeepUntilEnd,
		Amount:    amount,
	}
}

func TestRefundRejectsAmountOverCeiling(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	res := h.svc.Refund(context.Background(), 1, refundInput(p, 1_000_001))
	assert.False(t, res.OK)
	assert.Equal(t, ErrRefundCeiling.Error(), res.Error)

	// Rejection is still audited.
	last := h.store.lastAudit()
	require.NotNil(t, last)
	assert.Equal(t, "payment_refund_rejected", last.Action)

	// Nothing changed on the payment.
	assert.Equal(t, models.PaymentStatusPaid, h.store.payments[1].Status)
	assert.Zero(t, h.store.payments[1].RefundedAmount)
}

func TestRefundFullAmount(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	res := h.svc.Refund(context.Background(), 1, refundInput(p, 1_000_000))
	require.True(t, res.OK, "refund failed: %s", res.Error)

	stored := h.store.payments[1]
	assert.Equal(t, models.PaymentStatusRefunded, stored.Status)
	assert.Equal(t, int64(1_000_000), stored.RefundedAmount)
	assert.Equal(t, models.InvoiceStatusRefunded, h.store.saleByPay[1].Status)

	require.Len(t, h.store.refundInvs, 1)
	refundInv := h.store.refundInvs[0]
	assert.Equal(t, models.InvoiceTypeRefund, refundInv.Type)
	assert.Equal(t, int64(-1_000_000), refundInv.Total)
	assert.Equal(t, h.store.saleByPay[1].ID, *refundInv.RefundsInvoiceID)

	assert.Equal(t, 1, h.notifier.refunds)
	assert.Contains(t, *h.emitted, events.PaymentRefunded)
}

func TestRefundPartialLeavesHeadroom(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	res := h.svc.Refund(context.Background(), 1, refundInput(p, 400_000))
	require.True(t, res.OK, "refund failed: %s", res.Error)

	stored := h.store.payments[1]
	assert.Equal(t, models.PaymentStatusRefundedPartial, stored.Status)
	assert.Equal(t, int64(600_000), stored.RemainingRefundable())

	// Sale invoice keeps its status but gains an annotation.
	assert.Equal(t, models.InvoiceStatusPaid, h.store.saleByPay[1].Status)
	assert.Contains(t, h.store.saleByPay[1].Notes, "Partial refund of 400000 EUR")

	// A second partial over the remaining headroom is rejected.
	stored2, _ := h.store.GetPayment(context.Background(), 1)
	in := refundInput(stored2, 600_001)
	res = h.svc.Refund(context.Background(), 1, in)
	assert.False(t, res.OK)
	assert.Equal(t, ErrRefundCeiling.Error(), res.Error)
}

func TestRefundStaleTokenRejected(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	in := refundInput(p, 100_000)
	in.UpdatedAt = token(p.UpdatedAt.Add(-time.Minute))
	res := h.svc.Refund(context.Background(), 1, in)
	assert.False(t, res.OK)
	assert.Equal(t, ErrStaleData.Error(), res.Error)
}

func TestRefundIdempotencyKeyReplay(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	in := refundInput(p, 100_000)
	in.IdempotencyKey = "refund-2026-08-30-a"
	res := h.svc.Refund(context.Background(), 1, in)
	require.True(t, res.OK, "refund failed: %s", res.Error)
	assert.False(t, res.Idempotent)

	// Replaying with the same key must not double-refund.
	replay := h.svc.Refund(context.Background(), 1, in)
	assert.True(t, replay.OK)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, int64(100_000), h.store.payments[1].RefundedAmount)
}

func TestRefundConcurrentCommitGetsStaleFailure(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	// A second operator commits between our load and our write, inside the
	// same wall second, so the coarse client token still matches and only the
	// guarded update can catch the race.
	h.store.afterGetPayment = func() {
		h.store.payments[1].UpdatedAt = p.UpdatedAt.Add(300 * time.Millisecond)
	}

	res := h.svc.Refund(context.Background(), 1, refundInput(p, 600_000))
	assert.False(t, res.OK)
	assert.Equal(t, ErrStaleData.Error(), res.Error)

	// No lost update: nothing refunded, no refund invoice issued.
	assert.Zero(t, h.store.payments[1].RefundedAmount)
	assert.Len(t, h.store.refundInvs, 0)
}

func TestRefundRequiresAdmin(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	res := h.svc.Refund(context.Background(), 2, refundInput(p, 100_000))
	assert.False(t, res.OK)
	assert.Equal(t, ErrNotAdmin.Error(), res.Error)
}

func TestRefundRevokeNowPolicyRevokesEntitlement(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()
	planID := uint(7)
	h.store.plans[7] = &models.Plan{ID: 7, Code: "pro-monthly", CycleMonths: 1, EntitlementKey: models.EntitlementKeyPublish}
	h.store.prices[10] = &models.Price{ID: 10, ProductType: models.ProductTypeSubscriptionPlan, PlanID: &planID, IsActive: true}

	in := refundInput(p, 1_000_000)
	in.Policy = PolicyRevokeNow
	res := h.svc.Refund(context.Background(), 1, in)
	require.True(t, res.OK, "refund failed: %s", res.Error)
	assert.Equal(t, 1, h.sync.revokes)
}

func TestMarkPaymentFailed(t *testing.T) {
	h := newHarness()
	p := &models.Payment{
		ID: 3, Provider: "stripe", ProviderRef: "pi_3",
		UserID: 2, Status: models.PaymentStatusPending, Amount: 2900, Currency: "EUR",
		UpdatedAt: testNow.Add(-time.Hour),
	}
	h.store.payments[3] = p

	res := h.svc.MarkPaymentFailed(context.Background(), 1, MarkFailedInput{
		ID: 3, Reason: "provider confirmed the charge never settled", UpdatedAt: token(p.UpdatedAt),
	})
	require.True(t, res.OK, "mark failed: %s", res.Error)
	assert.Equal(t, models.PaymentStatusFailed, h.store.payments[3].Status)
	assert.Equal(t, 1, h.notifier.failures)
}

func TestMarkPaymentFailedRejectsNonPending(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	res := h.svc.MarkPaymentFailed(context.Background(), 1, MarkFailedInput{
		ID: 1, Reason: "trying to fail a settled payment", UpdatedAt: token(p.UpdatedAt),
	})
	assert.False(t, res.OK)

	last := h.store.lastAudit()
	require.NotNil(t, last)
	assert.Equal(t, "payment_mark_failed_rejected", last.Action)
}

func (h harness) seedSubscription(status string) *models.Subscription {
	sub := &models.Subscription{
		ID: 9, UserID: 2, PlanID: 7,
		Provider: "stripe", ProviderRef: "sub_9",
		Status:    status,
		StartedAt: testNow.AddDate(0, -1, 0), EndsAt: testNow.Add(10 * 24 * time.Hour),
		UpdatedAt: testNow.Add(-time.Hour),
	}
	h.store.subs[9] = sub
	h.store.plans[7] = &models.Plan{ID: 7, Code: "pro-monthly", CycleMonths: 1, EntitlementKey: models.EntitlementKeyPublish}
	return sub
}

func TestCancelNowWorkflow(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)

	res := h.svc.CancelNow(context.Background(), 1, CancelNowInput{
		ID: 9, Reason: "fraudulent account shutdown", UpdatedAt: token(sub.UpdatedAt),
	})
	require.True(t, res.OK, "cancel failed: %s", res.Error)
	assert.Equal(t, models.SubscriptionStatusCanceled, h.store.subs[9].Status)
	assert.Equal(t, 1, h.sync.revokes)
	assert.Equal(t, 1, h.notifier.cancels)
}

func TestCancelNowRejectsExpired(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusExpired)

	res := h.svc.CancelNow(context.Background(), 1, CancelNowInput{
		ID: 9, Reason: "attempting cancel on lapsed subscription", UpdatedAt: token(sub.UpdatedAt),
	})
	assert.False(t, res.OK)

	last := h.store.lastAudit()
	require.NotNil(t, last)
	assert.Equal(t, "subscription_cancel_now_rejected", last.Action)
}

func TestCancelNowConcurrentCommitGetsStaleFailure(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)

	h.store.afterGetSub = func() {
		h.store.subs[9].UpdatedAt = sub.UpdatedAt.Add(250 * time.Millisecond)
	}

	res := h.svc.CancelNow(context.Background(), 1, CancelNowInput{
		ID: 9, Reason: "racing cancel from a second console tab", UpdatedAt: token(sub.UpdatedAt),
	})
	assert.False(t, res.OK)
	assert.Equal(t, ErrStaleData.Error(), res.Error)
	assert.Equal(t, models.SubscriptionStatusActive, h.store.subs[9].Status)
	assert.Zero(t, h.sync.revokes)
}

func TestCancelNowAuditFailureRollsBackMutation(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)
	h.store.failAudit = true

	res := h.svc.CancelNow(context.Background(), 1, CancelNowInput{
		ID: 9, Reason: "cancel that must not outlive its audit row", UpdatedAt: token(sub.UpdatedAt),
	})
	assert.False(t, res.OK)

	// Mutation and audit row commit together or not at all.
	assert.Equal(t, models.SubscriptionStatusActive, h.store.subs[9].Status)
	assert.Empty(t, h.store.audits)
}

func TestToggleCancelNoOpStillAudits(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)

	flag := false // already false on the row
	res := h.svc.ToggleCancelAtPeriodEnd(context.Background(), 1, ToggleCancelInput{
		ID: 9, Reason: "operator double-checking the flag", UpdatedAt: token(sub.UpdatedAt), Cancel: &flag,
	})
	require.True(t, res.OK, "toggle failed: %s", res.Error)

	// No lifecycle event for a no-op, but the attempt is on the audit trail.
	assert.NotContains(t, *h.emitted, events.SubscriptionCancelUnscheduled)
	last := h.store.lastAudit()
	require.NotNil(t, last)
	assert.Equal(t, "subscription_toggle_cancel", last.Action)
}

func TestToggleCancelSchedulesAndNotifies(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)

	flag := true
	res := h.svc.ToggleCancelAtPeriodEnd(context.Background(), 1, ToggleCancelInput{
		ID: 9, Reason: "customer requested non-renewal", UpdatedAt: token(sub.UpdatedAt), Cancel: &flag,
	})
	require.True(t, res.OK, "toggle failed: %s", res.Error)
	assert.Equal(t, models.SubscriptionStatusRenewing, h.store.subs[9].Status)
	assert.Contains(t, *h.emitted, events.SubscriptionCancelScheduled)
	assert.Equal(t, 1, h.notifier.scheduled)
}

func TestAdjustEndsAtRejectsBeforeStart(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)

	res := h.svc.AdjustEndsAt(context.Background(), 1, AdjustEndsAtInput{
		ID: 9, Reason: "typo correction on period end", UpdatedAt: token(sub.UpdatedAt),
		NewEndsAt: token(sub.StartedAt.Add(-time.Hour)),
	})
	assert.False(t, res.OK)
}

func TestAdjustEndsAtRepointsEntitlement(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusActive)

	newEnd := testNow.Add(30 * 24 * time.Hour)
	res := h.svc.AdjustEndsAt(context.Background(), 1, AdjustEndsAtInput{
		ID: 9, Reason: "goodwill extension after outage", UpdatedAt: token(sub.UpdatedAt),
		NewEndsAt: token(newEnd),
	})
	require.True(t, res.OK, "adjust failed: %s", res.Error)
	assert.True(t, h.store.subs[9].EndsAt.Equal(newEnd))
	assert.Equal(t, 1, h.sync.repoints)
	assert.Contains(t, *h.emitted, events.SubscriptionPeriodAdjusted)
}

func TestRecomputeEntitlements(t *testing.T) {
	h := newHarness()
	h.seedSubscription(models.SubscriptionStatusActive)

	res := h.svc.RecomputeEntitlements(context.Background(), 1, RecomputeInput{
		UserID: 2, SubscriptionID: 9, Reason: "drift detected during reconciliation",
	})
	require.True(t, res.OK, "recompute failed: %s", res.Error)
	assert.Equal(t, 1, h.sync.repoints)
	assert.Equal(t, 1, h.notifier.syncPushes)
}

func TestRecomputeEntitlementsRevokesWhenLapsed(t *testing.T) {
	h := newHarness()
	sub := h.seedSubscription(models.SubscriptionStatusExpired)
	sub.EndsAt = testNow.Add(-24 * time.Hour)
	h.store.subs[9] = sub

	res := h.svc.RecomputeEntitlements(context.Background(), 1, RecomputeInput{
		UserID: 2, SubscriptionID: 9, Reason: "lapsed subscription still granting access",
	})
	require.True(t, res.OK, "recompute failed: %s", res.Error)
	assert.Equal(t, 1, h.sync.revokes)
}

func TestValidationFailureIsUniformResult(t *testing.T) {
	h := newHarness()
	p := h.seedPaidPayment()

	in := refundInput(p, 100_000)
	in.Reason = "meh" // below min=5
	res := h.svc.Refund(context.Background(), 1, in)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "Reason")
}
