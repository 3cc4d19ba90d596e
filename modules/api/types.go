package api

import "time"

// RegisterRequest represents an account registration request.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PublicKey string `json:"public_key"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an authenticated account and its token.
type TokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	PublicKey string `json:"public_key,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	PublicKey  string    `json:"public_key"`
	Active     bool      `json:"active"`
	LastActive time.Time `json:"last_active"`
}

// BatchUsersRequest resolves several user ids at once, used by clients
// to label room participant lists.
type BatchUsersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// CreateRoomRequest represents a room creation request.
type CreateRoomRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Participants    []string `json:"participants"`
	IsPrivate       *bool    `json:"is_private,omitempty"`
	MaxParticipants int      `json:"max_participants,omitempty"`
}

// AddParticipantsRequest adds users to an existing room.
type AddParticipantsRequest struct {
	UserIDs []string `json:"user_ids"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
