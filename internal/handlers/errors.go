package handlers

import (
	"errors"

	"biblioteca/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps a service error to a status code and a short message.
// Internal error text never reaches the client.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error, action string) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	case errors.Is(err, services.ErrValidation):
		return message(c, fiber.StatusBadRequest, "Validation failed")
	case errors.Is(err, services.ErrBookAndUserNotFound):
		return message(c, fiber.StatusNotFound, "Book and user not found")
	case errors.Is(err, services.ErrBookNotFound):
		return message(c, fiber.StatusNotFound, "Book not found")
	case errors.Is(err, services.ErrUserNotFound):
		return message(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrNotFound):
		return message(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrDuplicateActiveLoan):
		return message(c, fiber.StatusConflict, "This book is already loaned to this user")
	case errors.Is(err, services.ErrDuplicateKey):
		return message(c, fiber.StatusBadRequest, "CPF already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		return message(c, fiber.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrUnauthenticated):
		return message(c, fiber.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, services.ErrForbidden):
		return message(c, fiber.StatusForbidden, "Access denied")
	}

	logger.Error(action,
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.Error(err))
	return message(c, fiber.StatusInternalServerError, "internal error")
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

func invalidBody(c *fiber.Ctx) error {
	return message(c, fiber.StatusBadRequest, "Invalid request body")
}

// paramID reads the positive integer :id route parameter.
func paramID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(c *fiber.Ctx) error {
	return message(c, fiber.StatusBadRequest, "Invalid ID")
}
