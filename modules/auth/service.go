package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is returned while an account is locked out.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountInactive is returned for deactivated accounts.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrMissingFields is returned when a required registration field is empty.
	ErrMissingFields = errors.New("username, email, password and public key are required")
)

// AuthService handles registration, login and token verification.
type AuthService struct {
	repo   *UserRepository
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
	}
}

// Register creates a new account and returns it with a signed token.
func (s *AuthService) Register(_ context.Context, username, email, password, publicKey string) (*domain.User, string, error) {
	if username == "" || email == "" || password == "" || publicKey == "" {
		return nil, "", ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, "", ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, "", ErrPasswordTooLong
	}

	exists, err := s.repo.IdentityExists(email, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check identity: %w", err)
	}
	if exists {
		return nil, "", ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		PublicKey:    publicKey,
		Active:       true,
		LastLogin:    now,
		LastActive:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwt.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// Login authenticates a user and returns the account with a signed token.
// Five consecutive failures lock the account for an hour.
func (s *AuthService) Login(_ context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.repo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if user.IsLocked(time.Now()) {
		return nil, "", ErrAccountLocked
	}
	if !user.Active {
		return nil, "", ErrAccountInactive
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		if err := s.repo.RecordFailedLogin(user); err != nil {
			return nil, "", fmt.Errorf("failed to record login attempt: %w", err)
		}
		if user.LoginAttempts >= domain.MaxLoginAttempts {
			return nil, "", ErrAccountLocked
		}
		return nil, "", ErrInvalidCredentials
	}

	if err := s.repo.RecordSuccessfulLogin(user); err != nil {
		return nil, "", fmt.Errorf("failed to record login: %w", err)
	}

	token, err := s.jwt.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// ValidateToken verifies a token and confirms the subject is still a real,
// active account. The database check mirrors the per-request check the HTTP
// middleware performs: token validity alone is not enough once an account
// has been deactivated.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to verify subject: %w", err)
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}

	// Username may have changed since the token was issued; prefer the
	// stored one.
	return &domain.Claims{
		UserID:   user.ID,
		Username: user.Username,
	}, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(userID)
}

// SearchUsers returns active users matching the query.
func (s *AuthService) SearchUsers(_ context.Context, query, requesterID string) ([]domain.Profile, error) {
	if len(query) < 2 {
		return nil, errors.New("search query must be at least 2 characters")
	}
	users, err := s.repo.Search(query, requesterID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	profiles := make([]domain.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].PublicProfile())
	}
	return profiles, nil
}

// CheckUsername reports whether a username is still free to register.
func (s *AuthService) CheckUsername(_ context.Context, username string) (bool, error) {
	if username == "" {
		return false, errors.New("username is required")
	}
	taken, err := s.repo.UsernameExists(username)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return !taken, nil
}

// GetUsersBatch resolves a list of user ids to public profiles, preserving
// request order. Missing or inactive users are skipped.
func (s *AuthService) GetUsersBatch(_ context.Context, userIDs []string) ([]domain.Profile, error) {
	users, err := s.repo.FindByIDs(userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	byID := make(map[string]domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = users[i]
	}
	profiles := make([]domain.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := byID[id]; ok {
			profiles = append(profiles, u.PublicProfile())
		}
	}
	return profiles, nil
}
