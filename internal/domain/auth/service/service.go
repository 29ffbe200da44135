// Package service implements account registration, login and profile
// management.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/donorflow/donorflow/internal/domain/auth/repository"
)

var (
	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrWeakPassword rejects passwords below the minimum length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrMissingFields rejects registration with blank identity fields.
	ErrMissingFields = errors.New("username, email and password are required")
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	Create(ctx context.Context, username, email, hashedPassword string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByID(ctx context.Context, id int64) (*repository.User, error)
	UpdateProfile(ctx context.Context, id int64, update repository.ProfileUpdate) (*repository.User, error)
}

// RegisterParams carries a registration request.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// AuthResult pairs an account with a freshly issued access token.
type AuthResult struct {
	User  *repository.User
	Token string
}

// AuthService coordinates account business logic.
type AuthService struct {
	repo   UserStore
	tokens *TokenManager
	logger *slog.Logger
}

// NewAuthService constructs the auth service.
func NewAuthService(repo UserStore, tokens *TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, logger: logger}
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	username := strings.TrimSpace(params.Username)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if username == "" || email == "" || params.Password == "" {
		return nil, ErrMissingFields
	}
	if len(params.Password) < 8 {
		return nil, ErrWeakPassword
	}

	hashed, err := HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, username, email, hashed)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !ComparePassword(user.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Profile returns the account behind an id.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*repository.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile edits the account's profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, update repository.ProfileUpdate) (*repository.User, error) {
	return s.repo.UpdateProfile(ctx, userID, update)
}

// Verify validates a bearer token and returns the claims.
func (s *AuthService) Verify(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// VerifyUserID validates a bearer token and returns the user it names.
func (s *AuthService) VerifyUserID(token string) (int64, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
