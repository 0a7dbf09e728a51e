package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs one route group on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// Webhook routes first: the relay authenticates with a service key and
	// must not pass through the user-context middleware the admin surface
	// installs on its own group.
	setup(app, NewWebhookRouter(), NewAdminRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
