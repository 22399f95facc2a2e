// File: internal/services/user_services/auth_service.go
package user_services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/iyunix/go-bluebox/internal/auth"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/repository/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid registration input")
	ErrUsernameTaken      = user.ErrUsernameTaken

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

const passwordMinLength = 8

// AuthService registers users, logs them in and resolves tokens to identities.
type AuthService struct {
	userRepo     user.UserRepository
	jwtSecretKey []byte
	logger       logger.Logger
}

func NewAuthService(userRepo user.UserRepository, jwtSecretKey string, log logger.Logger) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		jwtSecretKey: []byte(jwtSecretKey),
		logger:       log.With("component", "auth_service"),
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if err := validateRegistrationInput(username, password); err != nil {
		s.logger.Warn("registration validation failed", "username", maskUsername(username), "error", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	u := &domain.User{Username: username}
	if err := u.HashPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.userRepo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			s.logger.Warn("registration failed - username already exists", "username", maskUsername(username))
			return nil, ErrUsernameTaken
		}
		s.logger.Error("failed to create user", "username", maskUsername(username), "error", err)
		return nil, err
	}

	s.logger.Info("user registered", "user_id", created.ID, "username", maskUsername(username))
	return created, nil
}

// Login checks the credentials and returns the user with a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials",
			"has_username", username != "",
			"has_password", password != "")
		return nil, "", ErrInvalidCredentials
	}

	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.logger.Warn("login failed - user not found", "username", maskUsername(username))
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := u.ValidatePassword(password); err != nil {
		s.logger.Warn("login failed - invalid password", "user_id", u.ID)
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(u.ID, u.Username, s.jwtSecretKey)
	if err != nil {
		s.logger.Error("JWT token generation failed", "user_id", u.ID, "error", err)
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("login successful", "user_id", u.ID)
	return u, token, nil
}

// Identify resolves a token to the identity of an existing user.
func (s *AuthService) Identify(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := auth.ValidateToken(token, s.jwtSecretKey)
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return &domain.Identity{UserID: u.ID, Username: u.Username}, nil
}

func validateRegistrationInput(username, password string) error {
	switch {
	case !usernameRegex.MatchString(username):
		return errors.New("username must be 3-20 characters, alphanumeric or underscore")
	case len(password) < passwordMinLength:
		return fmt.Errorf("password must be at least %d characters", passwordMinLength)
	}
	return nil
}

func maskUsername(username string) string {
	return username[:min(4, len(username))] + "****"
}
