package middleware

import (
	"errors"
	"strings"

	"biblioteca/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
)

// AuthRequired is a Fiber middleware that resolves the bearer token to the
// identity of an existing user and stores it in the request context.
func AuthRequired(authService *services.AuthService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer")) || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		identity, err := authService.Authenticate(parts[1])
		switch {
		case err == nil:
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		case errors.Is(err, services.ErrUnauthenticated):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		default:
			logger.Error("authentication failed",
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "internal error",
			})
		}

		c.Locals(identityKey, identity)
		c.Locals(tokenKey, parts[1])
		return c.Next()
	}
}

// RequireRole is a Fiber middleware that lets the request through only when
// the authenticated user holds role. It must run after AuthRequired.
func RequireRole(authService *services.AuthService, role string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}
		if err := authService.RequireRole(identity.UserID, role); err != nil {
			if errors.Is(err, services.ErrForbidden) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"message": "Access denied: administrators only",
				})
			}
			logger.Error("role check failed",
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.Uint("user_id", identity.UserID),
				zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "internal error",
			})
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthRequired.
func IdentityFrom(c *fiber.Ctx) (services.Identity, bool) {
	identity, ok := c.Locals(identityKey).(services.Identity)
	return identity, ok
}

// TokenFrom returns the bearer token accepted by AuthRequired.
func TokenFrom(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenKey).(string)
	return token
}
