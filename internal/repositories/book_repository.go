package repositories

import "biblioteca/internal/models"

// BookRepository defines the interface for book data access.
type BookRepository interface {
	GetAll(available *bool) ([]models.Book, error)
	GetByID(id uint) (*models.Book, error)
	Create(book *models.Book) error
	Update(book *models.Book) error
	Delete(id uint) error
}
