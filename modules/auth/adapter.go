package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrTokenRejected is returned by the adapter when the auth module refuses
// a token for any reason (bad signature, expiry, missing or inactive user).
var ErrTokenRejected = errors.New("token rejected")

// AuthPort is the interface other modules use to reach authentication.
type AuthPort interface {
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetUser(ctx context.Context, userID string) (*domain.Profile, error)
}

// Adapter implements AuthPort over the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new auth adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	return &Adapter{container: container}
}

// ValidateToken verifies a bearer token and returns the subject claims.
func (a *Adapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceValidateToken,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("validate-token request failed: %w", err)
	}

	if !resp.Valid {
		return nil, fmt.Errorf("%w: %s", ErrTokenRejected, resp.Error)
	}

	return &domain.Claims{
		UserID:   resp.UserID,
		Username: resp.Username,
	}, nil
}

// GetUser retrieves a user's public profile by ID.
func (a *Adapter) GetUser(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceGetUser,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("get-user request failed: %w", err)
	}

	return &domain.Profile{
		ID:         resp.ID,
		Username:   resp.Username,
		Email:      resp.Email,
		PublicKey:  resp.PublicKey,
		Active:     resp.Active,
		LastActive: resp.LastActive,
	}, nil
}
