package services_test

import (
	"fmt"
	"testing"
	"time"

	"biblioteca/internal/models"
	"biblioteca/internal/repositories"
	"biblioteca/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// memoryRevoker is a minimal services.TokenRevoker for tests.
type memoryRevoker struct {
	revoked map[string]time.Duration
}

func (r *memoryRevoker) Revoke(tokenID string, ttl time.Duration) error {
	r.revoked[tokenID] = ttl
	return nil
}

func (r *memoryRevoker) IsRevoked(tokenID string) (bool, error) {
	_, ok := r.revoked[tokenID]
	return ok, nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Login(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil, nil)

	user := models.User{ID: 7, Name: "Ana", PasswordHash: hashed(t, "x"), Role: models.RoleUser}

	// Test successful login
	mockRepo.On("GetByName", "Ana").Return([]models.User{user}, nil).Once()
	token, err := authService.Login("Ana", "x")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsed := &services.IdentityClaims{}
	_, err = jwt.ParseWithClaims(token, parsed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)
	assert.Equal(t, uint(7), parsed.UserID)
	assert.NotEmpty(t, parsed.Id)
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByName", "Ana").Return([]models.User{user}, nil).Once()
	_, err = authService.Login("Ana", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByName", "nobody").Return([]models.User{}, nil).Once()
	_, err = authService.Login("nobody", "x")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Store failure is not reported as bad credentials
	mockRepo.On("GetByName", "broken").Return(nil, fmt.Errorf("connection reset")).Once()
	_, err = authService.Login("broken", "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginPicksMatchingNamesake(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil, nil)

	first := models.User{ID: 1, Name: "Ana", PasswordHash: hashed(t, "one")}
	second := models.User{ID: 2, Name: "Ana", PasswordHash: hashed(t, "two")}
	mockRepo.On("GetByName", "Ana").Return([]models.User{first, second}, nil).Once()

	token, err := authService.Login("Ana", "two")
	require.NoError(t, err)
	userID, err := authService.Resolve(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(2), userID)
}

func TestAuthService_ValidateToken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil, nil)

	valid := jwt.NewWithClaims(jwt.SigningMethodHS256, services.IdentityClaims{
		UserID:         42,
		StandardClaims: jwt.StandardClaims{Id: "abc", ExpiresAt: time.Now().Add(time.Hour).Unix()},
	})
	validTokenString, _ := valid.SignedString([]byte(testJWTSecret))

	// Test valid token
	claims, err := authService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	// Test malformed token
	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	// Test wrong secret
	forged, _ := valid.SignedString([]byte("other_secret"))
	_, err = authService.ValidateToken(forged)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	// Test expired token
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, services.IdentityClaims{
		UserID:         42,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Hour).Unix()},
	})
	expiredTokenString, _ := expired.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	// Test token without subject
	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, services.IdentityClaims{
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	})
	anonymousTokenString, _ := anonymous.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(anonymousTokenString)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestAuthService_AuthenticateAndRequireRole(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil, nil)

	admin := &models.User{ID: 1, Name: "root", PasswordHash: hashed(t, "pw"), Role: models.RoleAdmin}
	reader := &models.User{ID: 2, Name: "Ana", PasswordHash: hashed(t, "pw"), Role: models.RoleUser}

	mockRepo.On("GetByName", "Ana").Return([]models.User{*reader}, nil).Once()
	token, err := authService.Login("Ana", "pw")
	require.NoError(t, err)

	mockRepo.On("GetByID", uint(2)).Return(reader, nil)
	mockRepo.On("GetByID", uint(1)).Return(admin, nil)
	mockRepo.On("GetByID", uint(9)).Return(nil, fmt.Errorf("user 9: %w", repositories.ErrNotFound))

	identity, err := authService.Authenticate(token)
	assert.NoError(t, err)
	assert.Equal(t, services.Identity{UserID: 2, Role: models.RoleUser}, identity)
	assert.False(t, identity.IsAdmin())

	assert.NoError(t, authService.RequireRole(1, models.RoleAdmin))
	assert.ErrorIs(t, authService.RequireRole(2, models.RoleAdmin), services.ErrForbidden)
	assert.ErrorIs(t, authService.RequireRole(9, models.RoleAdmin), services.ErrForbidden)

	_, err = authService.Authenticate("garbage")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestAuthService_AuthenticateDeletedUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil, nil)

	user := models.User{ID: 5, Name: "gone", PasswordHash: hashed(t, "pw")}
	mockRepo.On("GetByName", "gone").Return([]models.User{user}, nil).Once()
	token, err := authService.Login("gone", "pw")
	require.NoError(t, err)

	mockRepo.On("GetByID", uint(5)).Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.Authenticate(token)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestAuthService_Logout(t *testing.T) {
	mockRepo := new(MockUserRepository)
	revoker := &memoryRevoker{revoked: map[string]time.Duration{}}
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, revoker, nil)

	user := models.User{ID: 3, Name: "Bia", PasswordHash: hashed(t, "pw")}
	mockRepo.On("GetByName", "Bia").Return([]models.User{user}, nil).Once()
	token, err := authService.Login("Bia", "pw")
	require.NoError(t, err)

	_, err = authService.Resolve(token)
	require.NoError(t, err)

	require.NoError(t, authService.Logout(token))
	assert.Len(t, revoker.revoked, 1)
	for _, ttl := range revoker.revoked {
		assert.True(t, ttl > 0 && ttl <= time.Hour)
	}

	_, err = authService.Resolve(token)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	assert.ErrorIs(t, authService.Logout(token), services.ErrUnauthenticated)
}
