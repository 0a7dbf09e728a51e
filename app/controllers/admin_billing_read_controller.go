package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/app/repository"
)

// Read-only reconciliation views backing the admin console: a user's payment
// and invoice history, subscription detail, the audit trail of a resource and
// the failed-webhook triage list.

// HandleAdminUserPayments lists a user's payments, newest first.
func HandleAdminUserPayments(c *fiber.Ctx) error {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}
	offset, limit := parsePagination(c)

	payments, err := repository.GetGlobalFactory().GetPaymentRepository().GetByUserID(userID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Payment lookup failed"})
	}
	return c.JSON(fiber.Map{"payments": payments})
}

// HandleAdminUserInvoices lists a user's invoices, newest first.
func HandleAdminUserInvoices(c *fiber.Ctx) error {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}
	offset, limit := parsePagination(c)

	invoices, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByUserID(userID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Invoice lookup failed"})
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

// HandleAdminUserSubscription shows a user's subscription record.
func HandleAdminUserSubscription(c *fiber.Ctx) error {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No subscription for user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Subscription lookup failed"})
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleAdminAuditTrail lists audit entries for one resource.
func HandleAdminAuditTrail(c *fiber.Ctx) error {
	resourceID, ok := parseUintParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid resource id"})
	}
	resourceType := c.Params("type")
	if resourceType != "payment" && resourceType != "subscription" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown resource type"})
	}
	_, limit := parsePagination(c)

	rows, err := repository.GetGlobalFactory().GetAuditLogRepository().ListByResource(resourceType, resourceID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Audit lookup failed"})
	}
	return c.JSON(fiber.Map{"audit": rows})
}

// HandleAdminFailedWebhooks lists webhook deliveries stuck in failed state.
func HandleAdminFailedWebhooks(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)

	rows, err := repository.GetGlobalFactory().GetWebhookLogRepository().ListByStatus(models.WebhookLogStatusFailed, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Webhook log lookup failed"})
	}
	return c.JSON(fiber.Map{"webhook_logs": rows})
}
