package repositories

import "biblioteca/internal/models"

// LoanRepository defines the interface for loan data access.
type LoanRepository interface {
	GetAll() ([]models.Loan, error)
	GetByUserID(userID uint) ([]models.Loan, error)
	GetByID(id uint) (*models.Loan, error)
	// FindActive returns a loan other than excludeID holding the (book, user) pair.
	// Returned loans only count when includeReturned is set.
	FindActive(bookID, userID, excludeID uint, includeReturned bool) (*models.Loan, error)
	Create(loan *models.Loan) error
	Update(loan *models.Loan) error
	Delete(id uint) error
}
