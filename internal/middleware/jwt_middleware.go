package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"lapak/internal/services"
)

// UserIDKey is where AuthRequired stores the authenticated user's ID in the
// request context. Handlers read it instead of trusting anything from the
// request body.
const UserIDKey = "user_id"

// AuthRequired is a Fiber middleware that validates the bearer JWT and
// exposes the current user ID to downstream handlers.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Token is missing a subject",
			})
		}
		c.Locals(UserIDKey, sub)

		return c.Next()
	}
}

// CurrentUserID returns the authenticated user ID set by AuthRequired.
func CurrentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
