package notifications

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/LukasWeidner/TalentFox/internal/pkg/jobqueue"
)

// Notification kinds consumed by the external delivery collaborator.
const (
	KindPaymentFailed   = "payment_failed"
	KindRefundIssued    = "refund_issued"
	KindInvoiceReady    = "invoice_ready"
	KindCancelImmediate = "cancel_immediate"
	KindCancelScheduled = "cancel_scheduled"
)

// Notifier emits notification requests for the external delivery service.
// Callers treat every method as best-effort: failures are logged by the
// caller and never abort a committed financial mutation.
type Notifier interface {
	PaymentFailed(ctx context.Context, userID, paymentID uint) error
	RefundIssued(ctx context.Context, userID, paymentID uint, amount int64) error
	InvoiceReady(ctx context.Context, userID, invoiceID uint, number string) error
	CancelImmediate(ctx context.Context, userID, subscriptionID uint) error
	CancelScheduled(ctx context.Context, userID, subscriptionID uint) error
	EntitlementSync(ctx context.Context, userID uint) error
}

// QueueNotifier hands notification requests to the Redis job queue, the
// at-least-once delivery tier layered over the exactly-once ledger.
type QueueNotifier struct {
	queue *jobqueue.Queue
}

// NewQueueNotifier creates a notifier over the given queue.
func NewQueueNotifier(queue *jobqueue.Queue) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) enqueue(payload jobqueue.NotificationJobPayload) error {
	_, err := n.queue.EnqueueJob(jobqueue.JobTypeNotification, payload.ToMap())
	return err
}

func (n *QueueNotifier) PaymentFailed(ctx context.Context, userID, paymentID uint) error {
	return n.enqueue(jobqueue.NotificationJobPayload{Kind: KindPaymentFailed, UserID: userID, PaymentID: paymentID})
}

func (n *QueueNotifier) RefundIssued(ctx context.Context, userID, paymentID uint, amount int64) error {
	return n.enqueue(jobqueue.NotificationJobPayload{Kind: KindRefundIssued, UserID: userID, PaymentID: paymentID, Amount: amount})
}

func (n *QueueNotifier) InvoiceReady(ctx context.Context, userID, invoiceID uint, number string) error {
	return n.enqueue(jobqueue.NotificationJobPayload{Kind: KindInvoiceReady, UserID: userID, InvoiceID: invoiceID, InvoiceNumber: number})
}

func (n *QueueNotifier) CancelImmediate(ctx context.Context, userID, subscriptionID uint) error {
	return n.enqueue(jobqueue.NotificationJobPayload{Kind: KindCancelImmediate, UserID: userID, SubscriptionID: subscriptionID})
}

func (n *QueueNotifier) CancelScheduled(ctx context.Context, userID, subscriptionID uint) error {
	return n.enqueue(jobqueue.NotificationJobPayload{Kind: KindCancelScheduled, UserID: userID, SubscriptionID: subscriptionID})
}

func (n *QueueNotifier) EntitlementSync(ctx context.Context, userID uint) error {
	_, err := n.queue.EnqueueJob(jobqueue.JobTypeEntitlementSync, jobqueue.EntitlementSyncJobPayload{UserID: userID}.ToMap())
	return err
}

// LogNotifier writes notification requests to the log only. Used in dev and
// tests where no Redis is available.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) PaymentFailed(ctx context.Context, userID, paymentID uint) error {
	log.Infof("[Notifications] payment_failed user=%d payment=%d", userID, paymentID)
	return nil
}

func (n *LogNotifier) RefundIssued(ctx context.Context, userID, paymentID uint, amount int64) error {
	log.Infof("[Notifications] refund_issued user=%d payment=%d amount=%d", userID, paymentID, amount)
	return nil
}

func (n *LogNotifier) InvoiceReady(ctx context.Context, userID, invoiceID uint, number string) error {
	log.Infof("[Notifications] invoice_ready user=%d invoice=%d number=%s", userID, invoiceID, number)
	return nil
}

func (n *LogNotifier) CancelImmediate(ctx context.Context, userID, subscriptionID uint) error {
	log.Infof("[Notifications] cancel_immediate user=%d subscription=%d", userID, subscriptionID)
	return nil
}

func (n *LogNotifier) CancelScheduled(ctx context.Context, userID, subscriptionID uint) error {
	log.Infof("[Notifications] cancel_scheduled user=%d subscription=%d", userID, subscriptionID)
	return nil
}

func (n *LogNotifier) EntitlementSync(ctx context.Context, userID uint) error {
	log.Infof("[Notifications] entitlement_sync user=%d", userID)
	return nil
}
