package adminactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
)

// Refund refunds part or all of a payment. The refundable ceiling is
// amount - refundedAmount; a refund reaching the full amount flips the
// payment to REFUNDED and the sale invoice to REFUNDED, a partial refund
// leaves the payment REFUNDED_PARTIAL and annotates the sale invoice. A
// REFUND invoice with a negative total is always created and independently
// numbered.
func (s *Service) Refund(ctx context.Context, actorID uint, in RefundInput) (res Result) {
	defer recoverInto(&res, "Refund")

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

	now := s.now().UTC()
	var payment *models.Payment
	var refundInvoice *models.Invoice
	var refundNumber string

	err = s.store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetPayment(ctx, in.ID)
		if err != nil {
			return err
		}
		// Token, refundability and ceiling are checked on the row this
		// transaction writes; the guarded update below keeps them true through
		// commit, so two racing refunds cannot both consume the headroom.
		if !tokenMatches(p.UpdatedAt, expected) {
			return ErrStaleData
		}
		if !p.IsRefundable() {
			return ErrNotRefundable
		}
		if in.Amount > p.RemainingRefundable() {
			return ErrRefundCeiling
		}
		loadedAt := p.UpdatedAt
		before, _ := models.SnapshotOf(p)

		p.RefundedAmount += in.Amount
		full := p.RefundedAmount >= p.Amount
		if full {
			p.Status = models.PaymentStatusRefunded
		} else {
			p.Status = models.PaymentStatusRefundedPartial
		}
		if err := tx.SavePaymentIf(ctx, p, loadedAt); err != nil {
			return err
		}

		sale, err := tx.GetInvoiceForPayment(ctx, p.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if sale != nil {
			if full {
				sale.Status = models.InvoiceStatusRefunded
			} else {
				sale.Notes += fmt.Sprintf("Partial refund of %d %s issued on %s. ", in.Amount, p.Currency, now.Format("2006-01-02"))
			}
			if err := tx.SaveInvoice(ctx, sale); err != nil {
				return err
			}
		}

		refundInvoice = &models.Invoice{
			UserID:   p.UserID,
			Type:     models.InvoiceTypeRefund,
			Status:   models.InvoiceStatusPaid,
			Total:    -in.Amount,
			Currency: p.Currency,
			IssuedAt: now,
		}
		if sale != nil {
			refundInvoice.RefundsInvoiceID = &sale.ID
		}
		if err := tx.CreateInvoice(ctx, refundInvoice); err != nil {
			return err
		}
		refundNumber, err = tx.AllocateNumber(ctx, refundInvoice.ID, now)
		if err != nil {
			return err
		}

		after, _ := models.SnapshotOf(p)
		payment = p
		return tx.CreateAudit(ctx, &models.AuditLog{
			ActorID:      actorID,
			ResourceType: "payment",
			ResourceID:   p.ID,
			Action:       "payment_refund",
			Reason:       in.Reason,
			Before:       before,
			After:        after,
			Metadata: models.JSONMap{
				"amount":            in.Amount,
				"policy":            in.Policy,
				"refund_invoice_id": refundInvoice.ID,
			},
			IdempotencyKey: keyPtr(in.IdempotencyKey),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return failure(errors.New("payment not found"))
		case errors.Is(err, ErrNotRefundable), errors.Is(err, ErrRefundCeiling):
			s.auditRejection(ctx, actorID, "payment", in.ID, "payment_refund", in.Reason, err)
			return failure(err)
		default:
			return failure(err)
		}
	}

	s.runRefundEffects(ctx, payment, in)

	return Result{OK: true, Details: map[string]interface{}{
		"payment_status":        payment.Status,
		"refunded_amount":       payment.RefundedAmount,
		"remaining_refundable":  payment.RemainingRefundable(),
		"refund_invoice_id":     refundInvoice.ID,
		"refund_invoice_number": refundNumber,
	}}
}

// runRefundEffects performs the best-effort tier after the refund commit:
// entitlement revocation under revoke_now, notification and event emission.
func (s *Service) runRefundEffects(ctx context.Context, payment *models.Payment, in RefundInput) {
	now := s.now().UTC()

	if in.Policy == PolicyRevokeNow && s.sync != nil {
		key, err := s.entitlementKeyForPayment(ctx, payment)
		if err != nil {
			log.Errorf("[AdminActions] entitlement key lookup for payment %d: %v", payment.ID, err)
		} else if key != "" {
			if err := s.sync.Revoke(ctx, payment.UserID, key, now); err != nil {
				log.Errorf("[AdminActions] entitlement revoke after refund of payment %d: %v", payment.ID, err)
			}
		}
	}

	if s.notifier != nil {
		if err := s.notifier.RefundIssued(ctx, payment.UserID, payment.ID, in.Amount); err != nil {
			log.Errorf("[AdminActions] refund-issued notification for payment %d: %v", payment.ID, err)
		}
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.BillingEvent{
			Name:       events.PaymentRefunded,
			UserID:     payment.UserID,
			OccurredAt: now,
		})
	}
}

// entitlementKeyForPayment resolves the expiring entitlement affected by a
// payment, or "" when the price carries no subscription semantics.
func (s *Service) entitlementKeyForPayment(ctx context.Context, payment *models.Payment) (string, error) {
	price, err := s.store.GetPrice(ctx, payment.PriceID)
	if err != nil {
		return "", err
	}
	if price.ProductType != models.ProductTypeSubscriptionPlan || price.PlanID == nil {
		return "", nil
	}
	plan, err := s.store.GetPlan(ctx, *price.PlanID)
	if err != nil {
		return "", err
	}
	return plan.EntitlementKey, nil
}

// MarkPaymentFailed explicitly moves a pending payment to FAILED. Payments
// never fail silently; this and the webhook path are the only routes there.
func (s *Service) MarkPaymentFailed(ctx context.Context, actorID uint, in MarkFailedInput) (res Result) {
	defer recoverInto(&res, "MarkPaymentFailed")

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

	var payment *models.Payment
	var reject error
	err = s.store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetPayment(ctx, in.ID)
		if err != nil {
			return err
		}
		if !tokenMatches(p.UpdatedAt, expected) {
			return ErrStaleData
		}
		if p.Status != models.PaymentStatusPending {
			reject = fmt.Errorf("cannot mark a %s payment as failed", p.Status)
			return reject
		}
		loadedAt := p.UpdatedAt
		before, _ := models.SnapshotOf(p)

		p.Status = models.PaymentStatusFailed
		if err := tx.SavePaymentIf(ctx, p, loadedAt); err != nil {
			return err
		}
		after, _ := models.SnapshotOf(p)
		payment = p
		return tx.CreateAudit(ctx, &models.AuditLog{
			ActorID:        actorID,
			ResourceType:   "payment",
			ResourceID:     p.ID,
			Action:         "payment_mark_failed",
			Reason:         in.Reason,
			Before:         before,
			After:          after,
			IdempotencyKey: keyPtr(in.IdempotencyKey),
		})
	})
	if err != nil {
		if reject != nil {
			s.auditRejection(ctx, actorID, "payment", in.ID, "payment_mark_failed", in.Reason, reject)
			return failure(reject)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(errors.New("payment not found"))
		}
		return failure(err)
	}

	if s.notifier != nil {
		if err := s.notifier.PaymentFailed(ctx, payment.UserID, payment.ID); err != nil {
			log.Errorf("[AdminActions] payment-failed notification for payment %d: %v", payment.ID, err)
		}
	}
	return Result{OK: true, Details: map[string]interface{}{"payment_status": payment.Status}}
}
