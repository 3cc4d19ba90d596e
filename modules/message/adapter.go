package message

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/message"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MessagePort is the interface other modules use to reach the message store.
type MessagePort interface {
	Save(ctx context.Context, roomID, sender, content string, encrypted bool, clientTime time.Time) (*domain.Message, error)
	SaveSystem(ctx context.Context, roomID, content string) (*domain.Message, error)
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	Fingerprint(ctx context.Context, roomID string, limit int) (string, error)
}

// Adapter implements MessagePort over the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new message adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	return &Adapter{container: container}
}

// Save persists one user message and returns it as stored.
func (a *Adapter) Save(ctx context.Context, roomID, sender, content string, encrypted bool, clientTime time.Time) (*domain.Message, error) {
	req := SaveRequest{
		RoomID:     roomID,
		Sender:     sender,
		Content:    content,
		Encrypted:  encrypted,
		ClientTime: clientTime,
	}
	var resp SaveResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSave,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("save-message request failed: %w", err)
	}
	return &resp.Message, nil
}

// SaveSystem persists one system notice.
func (a *Adapter) SaveSystem(ctx context.Context, roomID, content string) (*domain.Message, error) {
	req := SaveSystemRequest{RoomID: roomID, Content: content}
	var resp SaveResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSaveSystem,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("save-system-message request failed: %w", err)
	}
	return &resp.Message, nil
}

// History loads the most recent messages for a room, oldest first.
func (a *Adapter) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := HistoryRequest{RoomID: roomID, Limit: limit}
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceHistory,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("message-history request failed: %w", err)
	}
	return resp.Messages, nil
}

// Fingerprint returns the digest of a history page.
func (a *Adapter) Fingerprint(ctx context.Context, roomID string, limit int) (string, error) {
	req := FingerprintRequest{RoomID: roomID, Limit: limit}
	var resp FingerprintResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceFingerprint,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return "", fmt.Errorf("history-fingerprint request failed: %w", err)
	}
	return resp.Fingerprint, nil
}

// Compile-time interface check.
var _ MessagePort = (*Adapter)(nil)
