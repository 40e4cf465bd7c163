package handlers

import (
	"biblioteca/internal/middleware"
	"biblioteca/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    services.NewValidator(),
		logger:      logger,
	}
}

// RegisterRoutes registers the authentication routes. limit guards login
// against credential guessing; auth resolves the caller for logout.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, limit, auth fiber.Handler) {
	router.Post("/login", limit, h.HandleLogin)
	router.Post("/logout", auth, h.HandleLogout)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Name     string `json:"nome" validate:"required"`
	Password string `json:"senha" validate:"required"`
}

// HandleLogin verifies the credential and issues an identity token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return respondError(c, h.logger, err, "login validation")
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = "Field '" + e.Field() + "' failed on the '" + e.Tag() + "' tag"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	token, err := h.authService.Login(req.Name, req.Password)
	if err != nil {
		h.logger.Info("login rejected",
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("ip", c.IP()))
		return respondError(c, h.logger, err, "login failed")
	}

	return c.JSON(fiber.Map{
		"message":      "Login successful",
		"access_token": token,
	})
}

// HandleLogout revokes the presented token.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.authService.Logout(middleware.TokenFrom(c)); err != nil {
		return respondError(c, h.logger, err, "logout failed")
	}
	return message(c, fiber.StatusOK, "Logout successful")
}
