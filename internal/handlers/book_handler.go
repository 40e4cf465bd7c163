package handlers

import (
	"strconv"

	"biblioteca/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// BookHandler handles HTTP requests for books.
type BookHandler struct {
	service *services.BookService
	logger  *zap.Logger
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(service *services.BookService, logger *zap.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the book routes. Reads need auth; writes need auth then admin.
func (h *BookHandler) RegisterRoutes(router fiber.Router, auth, admin fiber.Handler) {
	bookRoutes := router.Group("/livros")
	bookRoutes.Get("/", auth, h.HandleGetBooks)
	bookRoutes.Get("/:id", auth, h.HandleGetBookByID)
	bookRoutes.Post("/", auth, admin, h.HandleCreateBook)
	bookRoutes.Put("/:id", auth, admin, h.HandleUpdateBook)
	bookRoutes.Delete("/:id", auth, admin, h.HandleDeleteBook)
}

// HandleGetBooks lists books, optionally filtered by ?status=true|false.
func (h *BookHandler) HandleGetBooks(c *fiber.Ctx) error {
	var available *bool
	if raw := c.Query("status"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return message(c, fiber.StatusBadRequest, "Invalid status filter")
		}
		available = &v
	}

	books, err := h.service.GetAllBooks(available)
	if err != nil {
		return respondError(c, h.logger, err, "list books")
	}
	return c.JSON(books)
}

// HandleGetBookByID retrieves a single book.
func (h *BookHandler) HandleGetBookByID(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	book, err := h.service.GetBookByID(id)
	if err != nil {
		return respondError(c, h.logger, err, "get book")
	}
	return c.JSON(book)
}

// HandleCreateBook creates a new book.
func (h *BookHandler) HandleCreateBook(c *fiber.Ctx) error {
	var in services.BookInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	book, err := h.service.CreateBook(in)
	if err != nil {
		return respondError(c, h.logger, err, "create book")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Book created successfully",
		"livro":   book,
	})
}

// HandleUpdateBook replaces the fields of a book.
func (h *BookHandler) HandleUpdateBook(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	var in services.BookInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	book, err := h.service.UpdateBook(id, in)
	if err != nil {
		return respondError(c, h.logger, err, "update book")
	}
	return c.JSON(fiber.Map{
		"message": "Book updated successfully",
		"livro":   book,
	})
}

// HandleDeleteBook deletes a book together with its loans.
func (h *BookHandler) HandleDeleteBook(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	if err := h.service.DeleteBook(id); err != nil {
		return respondError(c, h.logger, err, "delete book")
	}
	return message(c, fiber.StatusOK, "Book deleted successfully")
}
