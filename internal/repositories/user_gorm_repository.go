package repositories

import (
	"fmt"

	"biblioteca/internal/models"

	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// GetAll retrieves every user ordered by ID.
func (r *GORMUserRepository) GetAll() ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	return users, nil
}

// GetByID retrieves a user by their ID.
func (r *GORMUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, translate(err))
	}
	return &user, nil
}

// GetByName retrieves all users sharing a display name, oldest first.
func (r *GORMUserRepository) GetByName(name string) ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("id").Find(&users, "name = ?", name).Error; err != nil {
		return nil, fmt.Errorf("failed to get users by name: %w", err)
	}
	return users, nil
}

// GetByCPF retrieves a user by canonical CPF.
func (r *GORMUserRepository) GetByCPF(cpf string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "cpf = ?", cpf).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by CPF: %w", translate(err))
	}
	return &user, nil
}

// Create inserts a new user. A CPF collision yields ErrDuplicateKey.
func (r *GORMUserRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

// Update overwrites the mutable fields of an existing user.
func (r *GORMUserRepository) Update(user *models.User) error {
	res := r.db.Model(&models.User{ID: user.ID}).
		Select("name", "cpf", "address", "password_hash", "role", "updated_at").
		Updates(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d not found for update: %w", user.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a user and their loans in one transaction.
func (r *GORMUserRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Loan{}).Error; err != nil {
			return fmt.Errorf("failed to delete loans of user %d: %w", id, err)
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %d not found for deletion: %w", id, ErrNotFound)
		}
		return nil
	})
}
