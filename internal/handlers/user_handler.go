package handlers

import (
	"biblioteca/internal/middleware"
	"biblioteca/internal/models"
	"biblioteca/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	service *services.UserService
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the user routes. Registration is open.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth, admin fiber.Handler) {
	userRoutes := router.Group("/usuarios")
	userRoutes.Post("/", h.HandleRegister)
	userRoutes.Get("/", auth, h.HandleGetUsers)
	userRoutes.Get("/:id", auth, h.HandleGetUserByID)
	userRoutes.Put("/", auth, h.HandleUpdateSelf)
	userRoutes.Put("/:id", auth, admin, h.HandleUpdateUser)
	userRoutes.Delete("/:id", auth, admin, h.HandleDeleteUser)
}

// HandleRegister creates a new user.
func (h *UserHandler) HandleRegister(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	user, err := h.service.RegisterUser(in)
	if err != nil {
		return respondError(c, h.logger, err, "register user")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"usuario": user.View(),
	})
}

// HandleGetUsers lists every user for admins and only the caller otherwise.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	caller, _ := middleware.IdentityFrom(c)
	users, err := h.service.ListUsers(caller)
	if err != nil {
		return respondError(c, h.logger, err, "list users")
	}
	return c.JSON(models.Views(users))
}

// HandleGetUserByID retrieves a single user visible to the caller.
func (h *UserHandler) HandleGetUserByID(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	caller, _ := middleware.IdentityFrom(c)
	user, err := h.service.GetUser(caller, id)
	if err != nil {
		return respondError(c, h.logger, err, "get user")
	}
	return c.JSON(user.View())
}

// HandleUpdateSelf edits the caller's own profile.
func (h *UserHandler) HandleUpdateSelf(c *fiber.Ctx) error {
	var in services.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	caller, _ := middleware.IdentityFrom(c)
	user, err := h.service.UpdateSelf(caller, in)
	if err != nil {
		return respondError(c, h.logger, err, "update own profile")
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"usuario": user.View(),
	})
}

// HandleUpdateUser edits any user's profile.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	var in services.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	user, err := h.service.UpdateUser(id, in)
	if err != nil {
		return respondError(c, h.logger, err, "update user")
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"usuario": user.View(),
	})
}

// HandleDeleteUser deletes a user together with their loans.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	if err := h.service.DeleteUser(id); err != nil {
		return respondError(c, h.logger, err, "delete user")
	}
	return message(c, fiber.StatusOK, "User deleted successfully")
}
