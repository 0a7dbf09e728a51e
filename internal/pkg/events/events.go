package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Billing event names emitted by the subscription lifecycle and admin flows.
const (
	SubscriptionActivated         = "subscription.activated"
	SubscriptionRestarted         = "subscription.restarted"
	SubscriptionRenewed           = "subscription.renewed"
	SubscriptionExpired           = "subscription.expired"
	SubscriptionCanceled          = "subscription.canceled"
	SubscriptionCancelScheduled   = "subscription.cancel_scheduled"
	SubscriptionCancelUnscheduled = "subscription.cancel_unscheduled"
	SubscriptionPeriodAdjusted    = "subscription.period_adjusted"
	PaymentRefunded               = "payment.refunded"
)

// SubscriptionSnapshot carries the resulting subscription fields on lifecycle
// events so listeners never have to re-read the row.
type SubscriptionSnapshot struct {
	SubscriptionID    uint       `json:"subscription_id"`
	PlanID            uint       `json:"plan_id"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	EndsAt            time.Time  `json:"ends_at"`
	RenewalAt         *time.Time `json:"renewal_at,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

// BillingEvent is the typed payload published on every billing transition.
type BillingEvent struct {
	Name           string                `json:"name"`
	UserID         uint                  `json:"user_id"`
	SubscriptionID uint                  `json:"subscription_id,omitempty"`
	PlanID         uint                  `json:"plan_id,omitempty"`
	OccurredAt     time.Time             `json:"occurred_at"`
	Subscription   *SubscriptionSnapshot `json:"subscription,omitempty"`
}

// Handler consumes a single billing event.
type Handler func(ctx context.Context, ev BillingEvent) error

// Bus is an explicit in-process listener registry. Handlers are registered at
// process startup and invoked synchronously on Publish; a failing or panicking
// handler is logged and never blocks the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Register adds a handler for the given event name. Registering under the
// empty name subscribes the handler to every event.
func (b *Bus) Register(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish delivers the event to all handlers registered for its name plus the
// catch-all handlers. Handler errors and panics are contained per handler.
func (b *Bus) Publish(ctx context.Context, ev BillingEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[ev.Name])+len(b.handlers[""]))
	targets = append(targets, b.handlers[ev.Name]...)
	targets = append(targets, b.handlers[""]...)
	b.mu.RUnlock()

	for _, h := range targets {
		b.invoke(ctx, ev, h)
	}
}

func (b *Bus) invoke(ctx context.Context, ev BillingEvent, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Events] handler panic on %s (user=%d): %v", ev.Name, ev.UserID, r)
		}
	}()
	if err := h(ctx, ev); err != nil {
		log.Errorf("[Events] handler error on %s (user=%d): %v", ev.Name, ev.UserID, err)
	}
}

// SnapshotFrom builds a SubscriptionSnapshot from raw fields; small helper so
// callers do not repeat the struct literal.
func SnapshotFrom(subID, planID uint, status string, startedAt, endsAt time.Time, renewalAt *time.Time, cancelAtPeriodEnd bool) *SubscriptionSnapshot {
	return &SubscriptionSnapshot{
		SubscriptionID:    subID,
		PlanID:            planID,
		Status:            status,
		StartedAt:         startedAt,
		EndsAt:            endsAt,
		RenewalAt:         renewalAt,
		CancelAtPeriodEnd: cancelAtPeriodEnd,
	}
}

// String implements fmt.Stringer for log lines.
func (ev BillingEvent) String() string {
	return fmt.Sprintf("%s user=%d sub=%d", ev.Name, ev.UserID, ev.SubscriptionID)
}
