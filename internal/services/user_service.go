package services

import (
	"errors"
	"fmt"
	"strings"

	"biblioteca/internal/models"
	"biblioteca/internal/repositories"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// RegisterInput carries the fields of a new user.
type RegisterInput struct {
	Name     string `json:"nome" validate:"required"`
	CPF      string `json:"CPF" validate:"required,cpf"`
	Address  string `json:"endereco" validate:"required"`
	Password string `json:"senha" validate:"required"`
	Role     string `json:"papel" validate:"omitempty,oneof=admin usuario"`
}

// ProfileInput carries the editable profile fields of a user.
type ProfileInput struct {
	Name    string `json:"nome" validate:"required"`
	CPF     string `json:"CPF" validate:"required,cpf"`
	Address string `json:"endereco" validate:"required"`
}

// UserOptions tunes the user rules.
type UserOptions struct {
	// AllowAdminRegistration lets open registration create admins.
	AllowAdminRegistration bool
}

// UserService handles business logic related to users.
type UserService struct {
	repo     repositories.UserRepository
	validate *validator.Validate
	logger   *zap.Logger
	opts     UserOptions
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository, logger *zap.Logger, opts UserOptions) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:     repo,
		validate: NewValidator(),
		logger:   logger,
		opts:     opts,
	}
}

// RegisterUser validates the input, formats the CPF, hashes the password and
// stores the user. A CPF already on file yields ErrDuplicateKey. Asking for
// the admin role fails with ErrForbidden unless admin registration is allowed.
func (s *UserService) RegisterUser(in RegisterInput) (*models.User, error) {
	if in.Role == models.RoleAdmin && !s.opts.AllowAdminRegistration {
		return nil, ErrForbidden
	}
	return s.register(in)
}

func (s *UserService) register(in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	cpf, _ := FormatCPF(in.CPF)

	if err := s.ensureCPFFree(cpf, 0); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		Name:         in.Name,
		CPF:          cpf,
		Address:      in.Address,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, mapRepoError(err, ErrUserNotFound)
	}
	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// ListUsers returns every user to an admin and only the caller otherwise.
func (s *UserService) ListUsers(caller Identity) ([]models.User, error) {
	if caller.IsAdmin() {
		return s.repo.GetAll()
	}
	user, err := s.repo.GetByID(caller.UserID)
	if err != nil {
		return nil, mapRepoError(err, ErrUserNotFound)
	}
	return []models.User{*user}, nil
}

// GetUser returns one user. Non-admins may only read themselves.
func (s *UserService) GetUser(caller Identity, id uint) (*models.User, error) {
	if !caller.IsAdmin() && caller.UserID != id {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, mapRepoError(err, ErrUserNotFound)
	}
	return user, nil
}

// UpdateUser edits the profile of any user. Callers gate it to admins.
func (s *UserService) UpdateUser(id uint, in ProfileInput) (*models.User, error) {
	return s.updateProfile(id, in)
}

// UpdateSelf edits the caller's own profile.
func (s *UserService) UpdateSelf(caller Identity, in ProfileInput) (*models.User, error) {
	return s.updateProfile(caller.UserID, in)
}

func (s *UserService) updateProfile(id uint, in ProfileInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	cpf, _ := FormatCPF(in.CPF)

	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, mapRepoError(err, ErrUserNotFound)
	}
	if err := s.ensureCPFFree(cpf, user.ID); err != nil {
		return nil, err
	}

	user.Name = in.Name
	user.CPF = cpf
	user.Address = in.Address
	if err := s.repo.Update(user); err != nil {
		return nil, mapRepoError(err, ErrUserNotFound)
	}
	return user, nil
}

// DeleteUser deletes a user and their loans.
func (s *UserService) DeleteUser(id uint) error {
	if err := s.repo.Delete(id); err != nil {
		return mapRepoError(err, ErrUserNotFound)
	}
	return nil
}

// EnsureAdmin creates an admin with the given credentials unless a user with
// that CPF already exists, in which case that user is promoted to admin.
func (s *UserService) EnsureAdmin(name, cpf, password string) (*models.User, error) {
	formatted, err := FormatCPF(cpf)
	if err != nil {
		return nil, newValidationError("CPF", err.Error())
	}
	existing, err := s.repo.GetByCPF(formatted)
	if err == nil {
		if existing.IsAdmin() {
			return existing, nil
		}
		existing.Role = models.RoleAdmin
		if err := s.repo.Update(existing); err != nil {
			return nil, mapRepoError(err, ErrUserNotFound)
		}
		s.logger.Warn("existing user promoted to admin", zap.Uint("user_id", existing.ID))
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("store: %w", err)
	}
	return s.register(RegisterInput{
		Name:     name,
		CPF:      formatted,
		Address:  "-",
		Password: password,
		Role:     models.RoleAdmin,
	})
}

// ensureCPFFree fails with ErrDuplicateKey when another user owns cpf.
func (s *UserService) ensureCPFFree(cpf string, self uint) error {
	existing, err := s.repo.GetByCPF(cpf)
	switch {
	case err == nil && existing.ID != self:
		return ErrDuplicateKey
	case err == nil, errors.Is(err, repositories.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("store: %w", err)
	}
}
