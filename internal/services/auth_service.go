package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"biblioteca/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenRevoker tracks revoked token IDs until they expire.
type TokenRevoker interface {
	Revoke(tokenID string, ttl time.Duration) error
	IsRevoked(tokenID string) (bool, error)
}

// IdentityClaims are the claims carried by an identity token.
type IdentityClaims struct {
	UserID uint `json:"user_id"`
	jwt.StandardClaims
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	revoker   TokenRevoker
	logger    *zap.Logger
	jwtSecret []byte
	tokenTTL  time.Duration // Duration for which a token is valid
}

// NewAuthService creates a new AuthService. revoker may be nil, in which case
// logout is a no-op.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, revoker TokenRevoker, logger *zap.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:  userRepo,
		revoker:   revoker,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// HashPassword returns a salted one-way hash of the plaintext credential.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Login verifies the credential of the named user and issues an identity token.
// Names are not unique; the oldest user whose credential matches wins.
func (s *AuthService) Login(name, password string) (string, error) {
	users, err := s.userRepo.GetByName(name)
	if err != nil {
		return "", fmt.Errorf("login lookup: %w", err)
	}
	for i := range users {
		if bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(password)) == nil {
			return s.issueToken(users[i].ID)
		}
	}
	return "", ErrInvalidCredentials
}

func (s *AuthService) issueToken(userID uint) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token, returning its claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("token subject missing: %w", ErrUnauthenticated)
	}

	if s.revoker != nil && claims.Id != "" {
		revoked, err := s.revoker.IsRevoked(claims.Id)
		if err != nil {
			return nil, fmt.Errorf("revocation check: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("token revoked: %w", ErrUnauthenticated)
		}
	}
	return claims, nil
}

// Resolve returns the user ID encoded in a valid token.
func (s *AuthService) Resolve(tokenString string) (uint, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Authenticate resolves a token to the identity of an existing user.
func (s *AuthService) Authenticate(tokenString string) (Identity, error) {
	userID, err := s.Resolve(tokenString)
	if err != nil {
		return Identity{}, err
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, fmt.Errorf("authenticate: %w", err)
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}

// RequireRole fetches the user and checks that they hold role.
func (s *AuthService) RequireRole(userID uint, role string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("require role: %w", err)
	}
	if user.Role != role {
		return ErrForbidden
	}
	return nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(tokenString string) error {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return err
	}
	if s.revoker == nil {
		return nil
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if err := s.revoker.Revoke(claims.Id, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
