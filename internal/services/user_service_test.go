package services_test

import (
	"testing"

	"biblioteca/internal/models"
	"biblioteca/internal/repositories"
	"biblioteca/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func anaInput() services.RegisterInput {
	return services.RegisterInput{Name: "Ana", CPF: "12345678901", Address: "Rua A", Password: "x", Role: "usuario"}
}

func TestUserService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	mockRepo.On("GetByCPF", "123.456.789-01").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.User).ID = 1
	}).Return(nil).Once()

	user, err := service.RegisterUser(anaInput())
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.Equal(t, "123.456.789-01", user.CPF)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "x", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("x")))
	mockRepo.AssertExpectations(t)
}

func TestUserService_RegisterUserDefaultsRole(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	mockRepo.On("GetByCPF", "123.456.789-01").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	in := anaInput()
	in.Role = ""
	user, err := service.RegisterUser(in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
}

func TestUserService_RegisterUserDuplicateCPF(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	mockRepo.On("GetByCPF", "123.456.789-01").Return(&models.User{ID: 4}, nil).Once()
	_, err := service.RegisterUser(anaInput())
	assert.ErrorIs(t, err, services.ErrDuplicateKey)

	// A race lost at the unique index reports the same condition
	mockRepo.On("GetByCPF", "123.456.789-01").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.Anything).Return(repositories.ErrDuplicateKey).Once()
	_, err = service.RegisterUser(anaInput())
	assert.ErrorIs(t, err, services.ErrDuplicateKey)
	mockRepo.AssertExpectations(t)
}

func TestUserService_RegisterUserValidation(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	in := anaInput()
	in.CPF = "1234"
	_, err := service.RegisterUser(in)
	assert.ErrorIs(t, err, services.ErrValidation)

	in = anaInput()
	in.Role = "superuser"
	_, err = service.RegisterUser(in)
	assert.ErrorIs(t, err, services.ErrValidation)

	in = anaInput()
	in.Password = ""
	_, err = service.RegisterUser(in)
	assert.ErrorIs(t, err, services.ErrValidation)

	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestUserService_ListUsers(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	all := []models.User{{ID: 1, Role: models.RoleAdmin}, {ID: 2, Role: models.RoleUser}}
	mockRepo.On("GetAll").Return(all, nil).Once()
	users, err := service.ListUsers(services.Identity{UserID: 1, Role: models.RoleAdmin})
	assert.NoError(t, err)
	assert.Len(t, users, 2)

	mockRepo.On("GetByID", uint(2)).Return(&all[1], nil).Once()
	users, err = service.ListUsers(services.Identity{UserID: 2, Role: models.RoleUser})
	assert.NoError(t, err)
	assert.Equal(t, []models.User{all[1]}, users)
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	_, err := service.GetUser(services.Identity{UserID: 2, Role: models.RoleUser}, 3)
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	mockRepo.On("GetByID", uint(3)).Return(&models.User{ID: 3}, nil).Once()
	user, err := service.GetUser(services.Identity{UserID: 1, Role: models.RoleAdmin}, 3)
	assert.NoError(t, err)
	assert.Equal(t, uint(3), user.ID)
}

func TestUserService_UpdateSelfKeepsOwnCPF(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	self := &models.User{ID: 2, Name: "Ana", CPF: "123.456.789-01", Role: models.RoleUser}
	mockRepo.On("GetByID", uint(2)).Return(self, nil).Once()
	mockRepo.On("GetByCPF", "123.456.789-01").Return(self, nil).Once()
	mockRepo.On("Update", self).Return(nil).Once()

	user, err := service.UpdateSelf(services.Identity{UserID: 2, Role: models.RoleUser},
		services.ProfileInput{Name: "Ana Maria", CPF: "123.456.789-01", Address: "Rua B"})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", user.Name)
	assert.Equal(t, "Rua B", user.Address)
	assert.Equal(t, models.RoleUser, user.Role)
	mockRepo.AssertExpectations(t)
}

func TestUserService_UpdateUserRejectsTakenCPF(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	mockRepo.On("GetByID", uint(2)).Return(&models.User{ID: 2, CPF: "111.111.111-11"}, nil).Once()
	mockRepo.On("GetByCPF", "123.456.789-01").Return(&models.User{ID: 3}, nil).Once()

	_, err := service.UpdateUser(2, services.ProfileInput{Name: "Ana", CPF: "12345678901", Address: "Rua A"})
	assert.ErrorIs(t, err, services.ErrDuplicateKey)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything)

	mockRepo.On("GetByID", uint(99)).Return(nil, repositories.ErrNotFound).Once()
	_, err = service.UpdateUser(99, services.ProfileInput{Name: "Ana", CPF: "12345678901", Address: "Rua A"})
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestUserService_DeleteUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	mockRepo.On("Delete", uint(1)).Return(nil).Once()
	assert.NoError(t, service.DeleteUser(1))

	mockRepo.On("Delete", uint(99)).Return(repositories.ErrNotFound).Once()
	assert.ErrorIs(t, service.DeleteUser(99), services.ErrUserNotFound)
	mockRepo.AssertExpectations(t)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	existing := &models.User{ID: 1, Role: models.RoleAdmin}
	mockRepo.On("GetByCPF", "000.000.000-00").Return(existing, nil).Once()
	user, err := service.EnsureAdmin("root", "00000000000", "pw")
	assert.NoError(t, err)
	assert.Same(t, existing, user)

	mockRepo.On("GetByCPF", "999.999.999-99").Return(nil, repositories.ErrNotFound).Twice()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()
	user, err = service.EnsureAdmin("root", "99999999999", "pw")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	mockRepo.AssertExpectations(t)

	_, err = service.EnsureAdmin("root", "bad", "pw")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestUserService_EnsureAdminPromotesExistingUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	existing := &models.User{ID: 4, Name: "Ana", CPF: "123.456.789-01", Role: models.RoleUser}
	mockRepo.On("GetByCPF", "123.456.789-01").Return(existing, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
		return u.ID == 4 && u.Role == models.RoleAdmin
	})).Return(nil).Once()

	user, err := service.EnsureAdmin("root", "12345678901", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	mockRepo.AssertExpectations(t)
}

func TestUserService_RegisterAdminGate(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, services.UserOptions{})

	in := anaInput()
	in.Role = models.RoleAdmin
	_, err := service.RegisterUser(in)
	assert.ErrorIs(t, err, services.ErrForbidden)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)

	open := services.NewUserService(mockRepo, nil, services.UserOptions{AllowAdminRegistration: true})
	mockRepo.On("GetByCPF", "123.456.789-01").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()
	user, err := open.RegisterUser(in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	mockRepo.AssertExpectations(t)
}
