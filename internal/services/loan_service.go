package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"biblioteca/internal/models"
	"biblioteca/internal/repositories"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Loan event routing keys.
const (
	EventsExchange    = "library"
	EventLoanCreated  = "loan.created"
	EventLoanUpdated  = "loan.updated"
	EventLoanReturned = "loan.returned"
	EventLoanDeleted  = "loan.deleted"
)

// EventPublisher publishes a message to a broker exchange.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// LoanInput carries the writable fields of a loan.
type LoanInput struct {
	LoanDate     string  `json:"data_emprestimo" validate:"required,date"`
	DueDate      string  `json:"data_devolucao" validate:"required,date"`
	ReturnedDate *string `json:"data_devolvido" validate:"omitempty,date"`
	BookID       uint    `json:"livro_id" validate:"required"`
	UserID       uint    `json:"usuario_id"`
}

// LoanOptions tunes the loan rules.
type LoanOptions struct {
	// BlockReturned makes a returned loan still block a new loan of the same
	// book to the same user.
	BlockReturned bool
}

// LoanService applies the loan rules on top of the book, user and loan stores.
type LoanService struct {
	loanRepo  repositories.LoanRepository
	bookRepo  repositories.BookRepository
	userRepo  repositories.UserRepository
	publisher EventPublisher
	logger    *zap.Logger
	validate  *validator.Validate
	opts      LoanOptions
	locks     pairLocks
	now       func() time.Time
}

// NewLoanService creates a new LoanService. publisher may be nil.
func NewLoanService(loanRepo repositories.LoanRepository, bookRepo repositories.BookRepository, userRepo repositories.UserRepository, publisher EventPublisher, logger *zap.Logger, opts LoanOptions) *LoanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		loanRepo:  loanRepo,
		bookRepo:  bookRepo,
		userRepo:  userRepo,
		publisher: publisher,
		logger:    logger,
		validate:  NewValidator(),
		opts:      opts,
		now:       time.Now,
	}
}

// CreateLoan lends a book. Non-admin callers always borrow for themselves;
// an admin may name the borrower through UserID.
func (s *LoanService) CreateLoan(caller Identity, in LoanInput) (*models.Loan, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}

	userID := caller.UserID
	if caller.IsAdmin() && in.UserID != 0 {
		userID = in.UserID
	}
	if err := s.checkReferences(in.BookID, userID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(in.BookID, userID)
	defer unlock()

	if err := s.checkDuplicate(in.BookID, userID, 0); err != nil {
		return nil, err
	}

	loan := &models.Loan{
		LoanDate: in.LoanDate,
		DueDate:  in.DueDate,
		BookID:   in.BookID,
		UserID:   userID,
	}
	if in.ReturnedDate != nil && *in.ReturnedDate != "" {
		loan.ReturnedDate = in.ReturnedDate
	}
	if err := s.loanRepo.Create(loan); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrDuplicateActiveLoan
		}
		return nil, fmt.Errorf("store: %w", err)
	}

	s.publish(EventLoanCreated, loan)
	return loan, nil
}

// ListLoans returns every loan to an admin and only the caller's loans otherwise.
func (s *LoanService) ListLoans(caller Identity) ([]models.Loan, error) {
	if caller.IsAdmin() {
		return s.loanRepo.GetAll()
	}
	return s.loanRepo.GetByUserID(caller.UserID)
}

// GetLoan returns a loan visible to the caller.
func (s *LoanService) GetLoan(caller Identity, id uint) (*models.Loan, error) {
	return s.visibleLoan(caller, id)
}

// UpdateLoan edits a loan. Admins may retarget book and borrower; other
// callers may only edit their own loans and the borrower stays the caller.
// ReturnedDate is only touched when present; an empty value clears it.
func (s *LoanService) UpdateLoan(caller Identity, id uint, in LoanInput) (*models.Loan, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	loan, err := s.visibleLoan(caller, id)
	if err != nil {
		return nil, err
	}

	userID := caller.UserID
	if caller.IsAdmin() {
		userID = loan.UserID
		if in.UserID != 0 {
			userID = in.UserID
		}
	}
	if err := s.checkReferences(in.BookID, userID); err != nil {
		return nil, err
	}

	loan.LoanDate = in.LoanDate
	loan.DueDate = in.DueDate
	loan.BookID = in.BookID
	loan.UserID = userID
	if in.ReturnedDate != nil {
		if *in.ReturnedDate == "" {
			loan.ReturnedDate = nil
		} else {
			loan.ReturnedDate = in.ReturnedDate
		}
	}

	if err := s.save(loan); err != nil {
		return nil, err
	}
	s.publish(EventLoanUpdated, loan)
	return loan, nil
}

// ReturnLoan records the return of a loan on date, or today when date is empty.
func (s *LoanService) ReturnLoan(caller Identity, id uint, date string) (*models.Loan, error) {
	if date == "" {
		date = s.now().Format(models.DateLayout)
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, newValidationError("data_devolvido", "Field 'data_devolvido' failed on the 'date' tag")
	}
	loan, err := s.visibleLoan(caller, id)
	if err != nil {
		return nil, err
	}
	loan.ReturnedDate = &date
	if err := s.loanRepo.Update(loan); err != nil {
		return nil, mapRepoError(err, ErrNotFound)
	}
	s.publish(EventLoanReturned, loan)
	return loan, nil
}

// DeleteLoan deletes a loan by ID.
func (s *LoanService) DeleteLoan(id uint) error {
	loan, err := s.loanRepo.GetByID(id)
	if err != nil {
		return mapRepoError(err, ErrNotFound)
	}
	if err := s.loanRepo.Delete(id); err != nil {
		return mapRepoError(err, ErrNotFound)
	}
	s.publish(EventLoanDeleted, loan)
	return nil
}

// visibleLoan fetches a loan, hiding other users' loans from non-admins.
func (s *LoanService) visibleLoan(caller Identity, id uint) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByID(id)
	if err != nil {
		return nil, mapRepoError(err, ErrNotFound)
	}
	if !caller.IsAdmin() && loan.UserID != caller.UserID {
		return nil, ErrNotFound
	}
	return loan, nil
}

// checkReferences verifies that both the book and the user exist.
func (s *LoanService) checkReferences(bookID, userID uint) error {
	bookMissing, err := s.missing(s.bookRepo.GetByID(bookID))
	if err != nil {
		return err
	}
	userMissing, err := s.missing(s.userRepo.GetByID(userID))
	if err != nil {
		return err
	}
	switch {
	case bookMissing && userMissing:
		return ErrBookAndUserNotFound
	case bookMissing:
		return ErrBookNotFound
	case userMissing:
		return ErrUserNotFound
	}
	return nil
}

func (s *LoanService) missing(_ any, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("store: %w", err)
}

// checkDuplicate rejects a second loan of the same book to the same user.
func (s *LoanService) checkDuplicate(bookID, userID, excludeID uint) error {
	_, err := s.loanRepo.FindActive(bookID, userID, excludeID, s.opts.BlockReturned)
	switch {
	case err == nil:
		return ErrDuplicateActiveLoan
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("store: %w", err)
	}
}

// save persists an edited loan under the pair lock, re-checking the
// duplicate rule when the loan still counts as active.
func (s *LoanService) save(loan *models.Loan) error {
	unlock := s.locks.lock(loan.BookID, loan.UserID)
	defer unlock()

	if s.opts.BlockReturned || !loan.Returned() {
		if err := s.checkDuplicate(loan.BookID, loan.UserID, loan.ID); err != nil {
			return err
		}
	}
	if err := s.loanRepo.Update(loan); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return ErrDuplicateActiveLoan
		}
		return mapRepoError(err, ErrNotFound)
	}
	return nil
}

func (s *LoanService) publish(event string, loan *models.Loan) {
	if s.publisher == nil {
		return
	}
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]interface{}{
		"event":         event,
		"id_emprestimo": loan.ID,
		"livro_id":      loan.BookID,
		"usuario_id":    loan.UserID,
		"occurred_at":   s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Warn("failed to marshal loan event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(EventsExchange, event, body); err != nil {
		s.logger.Warn("failed to publish loan event", zap.String("event", event), zap.Uint("loan_id", loan.ID), zap.Error(err))
	}
}

// pairLocks serializes loan writes per (book, user) pair using a fixed set of stripes.
type pairLocks [64]sync.Mutex

func (p *pairLocks) lock(bookID, userID uint) func() {
	m := &p[(uint64(bookID)*31+uint64(userID))%uint64(len(p))]
	m.Lock()
	return m.Unlock
}
