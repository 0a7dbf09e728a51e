package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/LukasWeidner/TalentFox/internal/pkg/webhook"
)

// HandlePaymentWebhook ingests one normalized provider payment event. The
// relay retries on any non-2xx answer, so duplicates are expected and answered
// 200 with idempotent=true.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	var ev webhook.Event
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed event payload"})
	}

	res, err := newWebhookService().Ingest(c.Context(), ev)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidEvent) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_event", "message": err.Error()})
		}
		log.Errorf("[WebhookController] ingest %s/%s failed: %v", ev.Provider, ev.ExternalID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
	}

	return c.Status(fiber.StatusOK).JSON(res)
}
