package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/LukasWeidner/TalentFox/internal/pkg/env"
	"github.com/LukasWeidner/TalentFox/internal/pkg/jobqueue"
)

// Deliverer forwards dequeued notification jobs to the external delivery
// service. With no endpoint configured it degrades to log-only, which is what
// dev environments run.
type Deliverer struct {
	endpoint string
	client   *http.Client
}

// NewDelivererFromEnv creates a deliverer from NOTIFY_ENDPOINT.
func NewDelivererFromEnv() *Deliverer {
	return &Deliverer{
		endpoint: env.GetEnv("NOTIFY_ENDPOINT", ""),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ProcessNotificationJob is the queue processor for notification jobs.
func (d *Deliverer) ProcessNotificationJob(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.NotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("decode notification payload: %w", err)
	}

	if d.endpoint == "" {
		log.Infof("[Notifications] (no endpoint) %s user=%d payment=%d invoice=%d subscription=%d",
			payload.Kind, payload.UserID, payload.PaymentID, payload.InvoiceID, payload.SubscriptionID)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", env.GetEnv("INTERNAL_SERVICE_KEY", ""))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification delivery returned %d", resp.StatusCode)
	}
	return nil
}
