package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"direct-chat/models"
)

const tokenIssuer = "direct-chat"

// Claims identifies the user a token was issued to.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a manager signing with secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues a token whose subject is the user's id.
func (m *TokenManager) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.UserID(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken verifies tokenString and returns its claims.
func (m *TokenManager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &UnauthenticatedError{Reason: "token expired"}
		}
		return nil, &UnauthenticatedError{Reason: "invalid token"}
	}
	if claims.Subject == "" {
		return nil, &UnauthenticatedError{Reason: "token has no subject"}
	}
	return claims, nil
}

// UserService manages accounts and the user directory.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a user service backed by db.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username, password, fullName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "is required"}
	}
	if len(password) < 6 {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("username %q: %w", username, ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &StorageError{Op: "find user", Err: err}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Password: string(hashed),
		FullName: strings.TrimSpace(fullName),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// A concurrent registration can win between the lookup and the insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username %q: %w", username, ErrConflict)
		}
		return nil, &StorageError{Op: "create user", Err: err}
	}
	return user, nil
}

// Login checks credentials and records the login time.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &UnauthenticatedError{Reason: "invalid username or password"}
	}
	if err != nil {
		return nil, &StorageError{Op: "find user", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, &UnauthenticatedError{Reason: "invalid username or password"}
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return nil, &StorageError{Op: "update last login", Err: err}
	}
	return &user, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, &StorageError{Op: "get user", Err: err}
	}
	return &user, nil
}

// ListOthers returns every user except userID, ordered by username.
func (s *UserService) ListOthers(ctx context.Context, userID string) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).Where("id <> ?", userID).Order("username ASC").Find(&users).Error
	if err != nil {
		return nil, &StorageError{Op: "list users", Err: err}
	}
	return users, nil
}
