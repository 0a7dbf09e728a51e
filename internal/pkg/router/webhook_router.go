package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/LukasWeidner/TalentFox/app/controllers"
	"github.com/LukasWeidner/TalentFox/internal/pkg/constants"
	"github.com/LukasWeidner/TalentFox/internal/pkg/middleware"
)

type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	group := app.Group(constants.InternalAPIRoute, limiter.New(limiter.Config{Max: 300}), middleware.ServiceKeyAuthMiddleware())
	group.Post("/webhooks/payment", controllers.HandlePaymentWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
