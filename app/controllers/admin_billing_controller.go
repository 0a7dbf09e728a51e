package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LukasWeidner/TalentFox/internal/pkg/adminactions"
	"github.com/LukasWeidner/TalentFox/internal/pkg/usercontext"
)

// The reconciliation endpoints all follow the same shape: parse the operator
// input, run the workflow, return its uniform result with 200. Rejections
// (validation, stale token, ceilings) are carried inside the result body, not
// as transport errors; only a malformed request body earns a 400.

func respondResult(c *fiber.Ctx, res adminactions.Result) error {
	return c.Status(fiber.StatusOK).JSON(res)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed request body"})
}

// HandleAdminRefund refunds part or all of a payment.
func HandleAdminRefund(c *fiber.Ctx) error {
	var in adminactions.RefundInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return respondResult(c, newAdminService().Refund(c.Context(), usercontext.GetUserID(c), in))
}

// HandleAdminMarkFailed marks a pending payment as failed.
func HandleAdminMarkFailed(c *fiber.Ctx) error {
	var in adminactions.MarkFailedInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return respondResult(c, newAdminService().MarkPaymentFailed(c.Context(), usercontext.GetUserID(c), in))
}

// HandleAdminCancelNow cancels a subscription immediately.
func HandleAdminCancelNow(c *fiber.Ctx) error {
	var in adminactions.CancelNowInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return respondResult(c, newAdminService().CancelNow(c.Context(), usercontext.GetUserID(c), in))
}

// HandleAdminToggleCancel schedules or unschedules a period-end cancellation.
func HandleAdminToggleCancel(c *fiber.Ctx) error {
	var in adminactions.ToggleCancelInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return respondResult(c, newAdminService().ToggleCancelAtPeriodEnd(c.Context(), usercontext.GetUserID(c), in))
}

// HandleAdminAdjustEndsAt overrides a subscription's period end.
func HandleAdminAdjustEndsAt(c *fiber.Ctx) error {
	var in adminactions.AdjustEndsAtInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return respondResult(c, newAdminService().AdjustEndsAt(c.Context(), usercontext.GetUserID(c), in))
}

// HandleAdminRecomputeEntitlements re-derives a user's entitlements from
// their subscription.
func HandleAdminRecomputeEntitlements(c *fiber.Ctx) error {
	var in adminactions.RecomputeInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return respondResult(c, newAdminService().RecomputeEntitlements(c.Context(), usercontext.GetUserID(c), in))
}
