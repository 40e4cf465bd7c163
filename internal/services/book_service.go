package services

import (
	"errors"
	"fmt"
	"strings"

	"biblioteca/internal/models"
	"biblioteca/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// BookInput carries the writable fields of a book.
type BookInput struct {
	Title     string `json:"titulo"`
	Author    string `json:"autor"`
	ISBN      string `json:"ISBN"`
	Synopsis  string `json:"resumo"`
	Available *bool  `json:"status"`
}

// BookService handles business logic related to books.
type BookService struct {
	repo     repositories.BookRepository
	validate *validator.Validate
}

// NewBookService creates a new BookService.
func NewBookService(repo repositories.BookRepository) *BookService {
	return &BookService{
		repo:     repo,
		validate: NewValidator(),
	}
}

// GetAllBooks retrieves all books, filtered by availability when given.
func (s *BookService) GetAllBooks(available *bool) ([]models.Book, error) {
	return s.repo.GetAll(available)
}

// GetBookByID retrieves a single book by its ID.
func (s *BookService) GetBookByID(id uint) (*models.Book, error) {
	book, err := s.repo.GetByID(id)
	if err != nil {
		return nil, mapRepoError(err, ErrBookNotFound)
	}
	return book, nil
}

// CreateBook validates and stores a new book. New books are available.
func (s *BookService) CreateBook(in BookInput) (*models.Book, error) {
	book := &models.Book{Available: true}
	applyBookInput(book, in)
	if err := s.validate.Struct(book); err != nil {
		return nil, fromValidator(err)
	}
	if err := s.repo.Create(book); err != nil {
		return nil, mapRepoError(err, ErrNotFound)
	}
	return book, nil
}

// UpdateBook replaces the fields of an existing book.
func (s *BookService) UpdateBook(id uint, in BookInput) (*models.Book, error) {
	book, err := s.repo.GetByID(id)
	if err != nil {
		return nil, mapRepoError(err, ErrBookNotFound)
	}
	applyBookInput(book, in)
	if err := s.validate.Struct(book); err != nil {
		return nil, fromValidator(err)
	}
	if err := s.repo.Update(book); err != nil {
		return nil, mapRepoError(err, ErrBookNotFound)
	}
	return book, nil
}

// DeleteBook deletes a book and the loans referencing it.
func (s *BookService) DeleteBook(id uint) error {
	if err := s.repo.Delete(id); err != nil {
		return mapRepoError(err, ErrBookNotFound)
	}
	return nil
}

func applyBookInput(book *models.Book, in BookInput) {
	book.Title = strings.TrimSpace(in.Title)
	book.Author = strings.TrimSpace(in.Author)
	book.ISBN = strings.TrimSpace(in.ISBN)
	book.Synopsis = strings.TrimSpace(in.Synopsis)
	if in.Available != nil {
		book.Available = *in.Available
	}
}

// mapRepoError converts repository sentinels into service errors, using
// notFound for a missing record.
func mapRepoError(err, notFound error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return notFound
	case errors.Is(err, repositories.ErrDuplicateKey):
		return ErrDuplicateKey
	default:
		return fmt.Errorf("store: %w", err)
	}
}
