package repositories

import (
	"fmt"

	"biblioteca/internal/models"

	"gorm.io/gorm"
)

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

// GetAll retrieves all books, optionally filtered by availability.
func (r *GORMBookRepository) GetAll(available *bool) ([]models.Book, error) {
	var books []models.Book
	query := r.db.Order("id")
	if available != nil {
		query = query.Where("available = ?", *available)
	}
	if err := query.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to get all books: %w", err)
	}
	return books, nil
}

// GetByID retrieves a single book by its ID.
func (r *GORMBookRepository) GetByID(id uint) (*models.Book, error) {
	var book models.Book
	if err := r.db.First(&book, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get book %d: %w", id, translate(err))
	}
	return &book, nil
}

// Create inserts a new book and assigns its ID.
func (r *GORMBookRepository) Create(book *models.Book) error {
	if err := r.db.Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", translate(err))
	}
	return nil
}

// Update overwrites an existing book.
func (r *GORMBookRepository) Update(book *models.Book) error {
	res := r.db.Model(&models.Book{ID: book.ID}).Select("title", "author", "isbn", "synopsis", "available", "updated_at").Updates(book)
	if res.Error != nil {
		return fmt.Errorf("failed to update book %d: %w", book.ID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book %d not found for update: %w", book.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a book and every loan referencing it in one transaction.
func (r *GORMBookRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&models.Loan{}).Error; err != nil {
			return fmt.Errorf("failed to delete loans of book %d: %w", id, err)
		}
		res := tx.Delete(&models.Book{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete book %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("book %d not found for deletion: %w", id, ErrNotFound)
		}
		return nil
	})
}
