package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/LukasWeidner/TalentFox/internal/pkg/env"
)

// ServiceKeyAuthMiddleware authenticates internal callers (the payment
// provider relay and cron jobs) via a shared service key header.
func ServiceKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("INTERNAL_SERVICE_KEY", "")
		if expected == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Service key not configured"})
		}

		key := extractServiceKey(c)
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing service key"})
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid service key"})
		}

		return c.Next()
	}
}

func extractServiceKey(c *fiber.Ctx) string {
	key := strings.TrimSpace(c.Get("X-Service-Key"))
	if key != "" {
		return key
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
