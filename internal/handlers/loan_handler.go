package handlers

import (
	"biblioteca/internal/middleware"
	"biblioteca/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LoanHandler handles HTTP requests for loans.
type LoanHandler struct {
	service *services.LoanService
	logger  *zap.Logger
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(service *services.LoanService, logger *zap.Logger) *LoanHandler {
	return &LoanHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the loan routes. Row-level visibility is applied
// by the service, so only deletion is gated to admins here.
func (h *LoanHandler) RegisterRoutes(router fiber.Router, auth, admin fiber.Handler) {
	loanRoutes := router.Group("/emprestimos", auth)
	loanRoutes.Get("/", h.HandleGetLoans)
	loanRoutes.Get("/:id", h.HandleGetLoanByID)
	loanRoutes.Post("/", h.HandleCreateLoan)
	loanRoutes.Put("/:id", h.HandleUpdateLoan)
	loanRoutes.Post("/:id/devolucao", h.HandleReturnLoan)
	loanRoutes.Delete("/:id", admin, h.HandleDeleteLoan)
}

// HandleGetLoans lists the loans visible to the caller.
func (h *LoanHandler) HandleGetLoans(c *fiber.Ctx) error {
	caller, _ := middleware.IdentityFrom(c)
	loans, err := h.service.ListLoans(caller)
	if err != nil {
		return respondError(c, h.logger, err, "list loans")
	}
	return c.JSON(loans)
}

// HandleGetLoanByID retrieves a single loan visible to the caller.
func (h *LoanHandler) HandleGetLoanByID(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	caller, _ := middleware.IdentityFrom(c)
	loan, err := h.service.GetLoan(caller, id)
	if err != nil {
		return respondError(c, h.logger, err, "get loan")
	}
	return c.JSON(loan)
}

// HandleCreateLoan lends a book.
func (h *LoanHandler) HandleCreateLoan(c *fiber.Ctx) error {
	var in services.LoanInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	caller, _ := middleware.IdentityFrom(c)
	loan, err := h.service.CreateLoan(caller, in)
	if err != nil {
		return respondError(c, h.logger, err, "create loan")
	}
	h.logger.Info("loan created",
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.Uint("loan_id", loan.ID),
		zap.Uint("book_id", loan.BookID),
		zap.Uint("user_id", loan.UserID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Loan created successfully",
		"emprestimo": loan,
	})
}

// HandleUpdateLoan edits a loan.
func (h *LoanHandler) HandleUpdateLoan(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	var in services.LoanInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	caller, _ := middleware.IdentityFrom(c)
	loan, err := h.service.UpdateLoan(caller, id, in)
	if err != nil {
		return respondError(c, h.logger, err, "update loan")
	}
	return c.JSON(fiber.Map{
		"message":    "Loan updated successfully",
		"emprestimo": loan,
	})
}

// ReturnRequest is the optional body of a return. An empty date means today.
type ReturnRequest struct {
	ReturnedDate string `json:"data_devolvido"`
}

// HandleReturnLoan records the return of a loan.
func (h *LoanHandler) HandleReturnLoan(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	var req ReturnRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
	}
	caller, _ := middleware.IdentityFrom(c)
	loan, err := h.service.ReturnLoan(caller, id, req.ReturnedDate)
	if err != nil {
		return respondError(c, h.logger, err, "return loan")
	}
	return c.JSON(fiber.Map{
		"message":    "Loan returned successfully",
		"emprestimo": loan,
	})
}

// HandleDeleteLoan deletes a loan.
func (h *LoanHandler) HandleDeleteLoan(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	if err := h.service.DeleteLoan(id); err != nil {
		return respondError(c, h.logger, err, "delete loan")
	}
	return message(c, fiber.StatusOK, "Loan deleted successfully")
}
