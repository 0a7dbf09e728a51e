package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/LukasWeidner/TalentFox/internal/pkg/adminactions"
	"github.com/LukasWeidner/TalentFox/internal/pkg/database"
	"github.com/LukasWeidner/TalentFox/internal/pkg/entitlements"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
	"github.com/LukasWeidner/TalentFox/internal/pkg/notifications"
	"github.com/LukasWeidner/TalentFox/internal/pkg/subscriptions"
	"github.com/LukasWeidner/TalentFox/internal/pkg/webhook"
)

// Shared collaborators injected once at startup. Defaults keep handlers
// functional in tests without Redis.
var (
	notifier notifications.Notifier = notifications.NewLogNotifier()
	bus                             = events.NewBus()
)

// SetNotifier installs the notification sink used by all handlers.
func SetNotifier(n notifications.Notifier) {
	if n != nil {
		notifier = n
	}
}

// SetEventBus installs the billing event bus used by all handlers.
func SetEventBus(b *events.Bus) {
	if b != nil {
		bus = b
	}
}

// EventBus exposes the active bus so startup code can register handlers.
func EventBus() *events.Bus {
	return bus
}

func newEntitlementEngine() *entitlements.Engine {
	return entitlements.NewEngineFromDB(database.GetDB())
}

func newSubscriptionManager() *subscriptions.Manager {
	return subscriptions.NewManagerFromDB(database.GetDB(), bus, newEntitlementEngine())
}

func newWebhookService() *webhook.Service {
	db := database.GetDB()
	return webhook.NewService(webhook.NewStore(db), entitlements.NewEngineFromDB(db), newSubscriptionManager(), notifier)
}

func newAdminService() *adminactions.Service {
	db := database.GetDB()
	engine := entitlements.NewEngineFromDB(db)
	return adminactions.NewService(adminactions.NewStore(db), subscriptions.NewManagerFromDB(db, bus, engine), engine, notifier, bus)
}

// parseUintParam reads a positive integer path parameter.
func parseUintParam(c *fiber.Ctx, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Params(name))
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// parsePagination reads offset/limit query parameters with sane bounds.
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return offset, limit
}
