package repositories

import (
	"fmt"

	"biblioteca/internal/models"

	"gorm.io/gorm"
)

// GORMLoanRepository is a GORM implementation of LoanRepository.
type GORMLoanRepository struct {
	db *gorm.DB
}

// NewGORMLoanRepository creates a new instance of GORMLoanRepository.
func NewGORMLoanRepository(db *gorm.DB) *GORMLoanRepository {
	return &GORMLoanRepository{
		db: db,
	}
}

// GetAll retrieves every loan.
func (r *GORMLoanRepository) GetAll() ([]models.Loan, error) {
	var loans []models.Loan
	if err := r.db.Order("id").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	return loans, nil
}

// GetByUserID retrieves the loans held by one user.
func (r *GORMLoanRepository) GetByUserID(userID uint) ([]models.Loan, error) {
	var loans []models.Loan
	if err := r.db.Order("id").Find(&loans, "user_id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to get loans of user %d: %w", userID, err)
	}
	return loans, nil
}

// GetByID retrieves a loan by its ID.
func (r *GORMLoanRepository) GetByID(id uint) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.First(&loan, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, translate(err))
	}
	return &loan, nil
}

// FindActive looks up a conflicting loan for the (book, user) pair.
func (r *GORMLoanRepository) FindActive(bookID, userID, excludeID uint, includeReturned bool) (*models.Loan, error) {
	var loan models.Loan
	query := r.db.Where("book_id = ? AND user_id = ?", bookID, userID)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if !includeReturned {
		query = query.Where("returned_date IS NULL")
	}
	if err := query.First(&loan).Error; err != nil {
		return nil, fmt.Errorf("failed to find loan of book %d for user %d: %w", bookID, userID, translate(err))
	}
	return &loan, nil
}

// Create inserts a new loan. The unique (book, user) index reports ErrDuplicateKey.
func (r *GORMLoanRepository) Create(loan *models.Loan) error {
	if err := r.db.Create(loan).Error; err != nil {
		return fmt.Errorf("failed to create loan: %w", translate(err))
	}
	return nil
}

// Update overwrites an existing loan.
func (r *GORMLoanRepository) Update(loan *models.Loan) error {
	res := r.db.Model(&models.Loan{ID: loan.ID}).
		Select("loan_date", "due_date", "returned_date", "book_id", "user_id", "updated_at").
		Updates(loan)
	if res.Error != nil {
		return fmt.Errorf("failed to update loan %d: %w", loan.ID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("loan %d not found for update: %w", loan.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a loan by its ID.
func (r *GORMLoanRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Loan{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete loan %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("loan %d not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}
