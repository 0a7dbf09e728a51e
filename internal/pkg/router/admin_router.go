package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/LukasWeidner/TalentFox/app/controllers"
	"github.com/LukasWeidner/TalentFox/internal/pkg/constants"
	"github.com/LukasWeidner/TalentFox/internal/pkg/middleware"
)

type AdminRouter struct {
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	group := app.Group(constants.AdminAPIRoute,
		limiter.New(limiter.Config{Max: 120}),
		middleware.UserContextMiddleware(),
		middleware.RequireAdminMiddleware(),
	)

	// Reconciliation workflows
	group.Post("/payments/refund", controllers.HandleAdminRefund)
	group.Post("/payments/mark-failed", controllers.HandleAdminMarkFailed)
	group.Post("/subscriptions/cancel-now", controllers.HandleAdminCancelNow)
	group.Post("/subscriptions/toggle-cancel", controllers.HandleAdminToggleCancel)
	group.Post("/subscriptions/adjust-ends-at", controllers.HandleAdminAdjustEndsAt)
	group.Post("/entitlements/recompute", controllers.HandleAdminRecomputeEntitlements)

	// Reconciliation views
	group.Get("/users/:id/payments", controllers.HandleAdminUserPayments)
	group.Get("/users/:id/invoices", controllers.HandleAdminUserInvoices)
	group.Get("/users/:id/subscription", controllers.HandleAdminUserSubscription)
	group.Get("/audit/:type/:id", controllers.HandleAdminAuditTrail)
	group.Get("/webhooks/failed", controllers.HandleAdminFailedWebhooks)
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}
