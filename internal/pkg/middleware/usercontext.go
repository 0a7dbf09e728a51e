package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/database"
	"github.com/LukasWeidner/TalentFox/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the acting user from the gateway headers.
// The API gateway authenticates requests upstream and forwards the identity
// as X-User-ID; we re-load the user row so role and status are always the
// ledger's view, never a stale claim from the edge.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get("X-User-ID"))
		if raw == "" {
			c.Locals("USER_CONTEXT", usercontext.UserContext{})
			return c.Next()
		}

		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || userID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid X-User-ID header"})
		}

		db := database.GetDB()
		if db == nil {
			log.Error("[Middleware] user context: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		var user models.User
		if err := db.First(&user, uint(userID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Unknown user"})
			}
			log.Errorf("[Middleware] user context lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "User lookup failed"})
		}

		if !user.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		userCtx := usercontext.UserContext{
			UserID:     user.ID,
			Username:   user.Name,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
		}
		c.Locals("USER_CONTEXT", userCtx)
		c.Locals(usercontext.KeyUserID, user.ID)
		c.Locals(usercontext.KeyUsername, user.Name)
		c.Locals(usercontext.KeyIsAdmin, user.IsAdmin())

		return c.Next()
	}
}

// RequireAdminMiddleware guards the reconciliation surface. The workflows
// re-check the admin role themselves; this just keeps non-admins from
// reaching them at all.
func RequireAdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := usercontext.GetUserContext(c)
		if !ctx.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing user identity"})
		}
		if !ctx.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Administrator role required"})
		}
		return c.Next()
	}
}
