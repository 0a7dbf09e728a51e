package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/entitlements"
	"github.com/LukasWeidner/TalentFox/internal/pkg/notifications"
	"github.com/LukasWeidner/TalentFox/internal/pkg/subscriptions"
)

// ErrInvalidEvent is returned when the normalized event fails validation.
var ErrInvalidEvent = errors.New("invalid webhook event")

// Service idempotently records provider payment events and applies their
// ledger effect: payment upsert, sale invoice with allocated number, then
// best-effort entitlement and notification fan-out after commit.
type Service struct {
	store    Store
	engine   *entitlements.Engine
	subs     *subscriptions.Manager
	notifier notifications.Notifier
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a webhook ingestion service.
func NewService(store Store, engine *entitlements.Engine, subs *subscriptions.Manager, notifier notifications.Notifier) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		subs:     subs,
		notifier: notifier,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithClock overrides the service's time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest processes one normalized provider event. The WebhookLog insert is
// the idempotency gate: a duplicate (provider, external_id) returns an
// idempotent no-op before any ledger row is touched. The financial mutation
// runs in one transaction; entitlement sync and notifications run after
// commit and never roll it back.
func (s *Service) Ingest(ctx context.Context, ev Event) (Result, error) {
	if err := s.validate.Struct(ev); err != nil {
		return Result{}, errors.Join(ErrInvalidEvent, err)
	}
	mapped, err := MapProviderStatus(ev.Status)
	if err != nil {
		return Result{}, errors.Join(ErrInvalidEvent, err)
	}

	logRow := &models.WebhookLog{
		Provider:   ev.Provider,
		ExternalID: ev.ExternalID,
		EventType:  ev.EventType,
		Status:     models.WebhookLogStatusReceived,
		RawPayload: ev.RawPayload,
	}
	created, err := s.store.CreateLogIfNew(ctx, logRow)
	if err != nil {
		return Result{}, err
	}
	if !created {
		log.Infof("[Webhook] duplicate delivery %s/%s, skipping", ev.Provider, ev.ExternalID)
		return Result{Idempotent: true}, nil
	}

	res := Result{PaymentStatus: mapped}
	invoiceCreated := false
	err = s.store.WithTx(ctx, func(tx Store) error {
		payment := &models.Payment{
			Provider:    ev.Provider,
			ProviderRef: ev.ProviderRef,
			UserID:      ev.UserID,
			PriceID:     ev.PriceID,
			Status:      mapped,
			Amount:      ev.Amount,
			Currency:    ev.Currency,
		}
		if err := tx.UpsertPayment(ctx, payment); err != nil {
			return err
		}
		res.PaymentID = payment.ID

		if mapped == models.PaymentStatusPaid {
			inv, err := tx.GetInvoiceForPayment(ctx, payment.ID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if inv == nil {
				issuedAt := s.now().UTC()
				inv = &models.Invoice{
					UserID:    payment.UserID,
					PaymentID: &payment.ID,
					Type:      models.InvoiceTypeSale,
					Status:    models.InvoiceStatusPaid,
					Total:     payment.Amount,
					Currency:  payment.Currency,
					IssuedAt:  issuedAt,
				}
				if err := tx.CreateInvoice(ctx, inv); err != nil {
					return err
				}
				number, err := tx.AllocateNumber(ctx, inv.ID, issuedAt)
				if err != nil {
					return err
				}
				invoiceCreated = true
				res.InvoiceID = inv.ID
				res.InvoiceNumber = number
			} else {
				res.InvoiceID = inv.ID
				if inv.Number != nil {
					res.InvoiceNumber = *inv.Number
				}
			}
		}

		return tx.MarkLogHandled(ctx, logRow.ID, "")
	})
	if err != nil {
		if markErr := s.store.MarkLogFailed(ctx, logRow.ID, err.Error()); markErr != nil {
			log.Errorf("[Webhook] could not mark log %d failed: %v", logRow.ID, markErr)
		}
		return Result{}, err
	}

	s.runEffects(ctx, ev, mapped, res, invoiceCreated)
	return res, nil
}

// runEffects performs the best-effort tier after the financial transaction
// has committed. Each step is independently caught and logged.
func (s *Service) runEffects(ctx context.Context, ev Event, mapped string, res Result, invoiceCreated bool) {
	switch mapped {
	case models.PaymentStatusPaid:
		s.applyEntitlements(ctx, ev, res.PaymentID)
	case models.PaymentStatusFailed:
		if s.notifier != nil {
			if err := s.notifier.PaymentFailed(ctx, ev.UserID, res.PaymentID); err != nil {
				log.Errorf("[Webhook] payment-failed notification for payment %d: %v", res.PaymentID, err)
			}
		}
	}

	if invoiceCreated && s.notifier != nil {
		if err := s.notifier.InvoiceReady(ctx, ev.UserID, res.InvoiceID, res.InvoiceNumber); err != nil {
			log.Errorf("[Webhook] invoice-ready notification for invoice %d: %v", res.InvoiceID, err)
		}
	}
}

func (s *Service) applyEntitlements(ctx context.Context, ev Event, paymentID uint) {
	if s.engine == nil {
		return
	}
	applied, err := s.engine.ApplyPayment(ctx, paymentID)
	if err != nil {
		log.Errorf("[Webhook] entitlement apply for payment %d: %v", paymentID, err)
		return
	}
	log.Infof("[Webhook] entitlements for payment %d: %s", paymentID, applied.Outcome)

	// A subscription-plan purchase also starts or extends the recurring
	// subscription record.
	if s.subs == nil || applied.Outcome != entitlements.OutcomeApplied || applied.ExpiresAt == nil {
		return
	}
	price, err := s.store.GetPrice(ctx, ev.PriceID)
	if err != nil || price.ProductType != models.ProductTypeSubscriptionPlan || price.PlanID == nil {
		return
	}
	if _, err := s.subs.ActivateOrStart(ctx, ev.UserID, *price.PlanID, ev.Provider, ev.ProviderRef, nil); err != nil {
		log.Errorf("[Webhook] subscription activation for payment %d: %v", paymentID, err)
	}
}
