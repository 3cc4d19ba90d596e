package auth

import (
	"time"
)

// Service names registered in the service container.
const (
	ServiceRegister      = "register"
	ServiceLogin         = "login"
	ServiceValidateToken = "validate-token"
	ServiceGetUser       = "get-user"
	ServiceSearchUsers   = "search-users"
	ServiceGetUsersBatch = "get-users-batch"
	ServiceCheckUsername = "check-username"
)

// RegisterRequest represents an account registration request.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PublicKey string `json:"public_key"`
}

// RegisterResponse carries the new account and its first token.
type RegisterResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the authenticated account and token.
type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	PublicKey string `json:"public_key"`
	ExpiresIn int64  `json:"expires_in"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid    bool   `json:"valid"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse represents a get user response.
type GetUserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	PublicKey  string    `json:"public_key"`
	Active     bool      `json:"active"`
	LastActive time.Time `json:"last_active"`
}

// SearchUsersRequest represents a user search request.
type SearchUsersRequest struct {
	Query       string `json:"query"`
	RequesterID string `json:"requester_id"`
}

// SearchUsersResponse represents a user search response.
type SearchUsersResponse struct {
	Results []GetUserResponse `json:"results"`
	Count   int               `json:"count"`
}

// CheckUsernameRequest asks whether a username is free.
type CheckUsernameRequest struct {
	Username string `json:"username"`
}

// CheckUsernameResponse reports username availability.
type CheckUsernameResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// GetUsersBatchRequest resolves multiple user ids at once.
type GetUsersBatchRequest struct {
	UserIDs []string `json:"user_ids"`
}

// GetUsersBatchResponse carries resolved profiles in request order.
type GetUsersBatchResponse struct {
	Users []GetUserResponse `json:"users"`
	Count int               `json:"count"`
}
