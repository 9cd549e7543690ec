// middleware/auth.go
package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the authenticated player's steam id set by
// the Gateway and attaches it to the request context. Secured routes cannot
// proceed without it.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		steamID := c.Get("X-Steam-ID")
		if steamID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Steam-ID — request must come through gateway with auth context",
			})
		}

		c.Locals("steam_id", steamID)
		return c.Next()
	}
}
