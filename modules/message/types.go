package message

import (
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/message"
)

// Service names exposed through the service container.
const (
	ServiceSave        = "save-message"
	ServiceSaveSystem  = "save-system-message"
	ServiceHistory     = "message-history"
	ServiceFingerprint = "history-fingerprint"
)

// SaveRequest stores one user message.
type SaveRequest struct {
	RoomID     string    `json:"room_id"`
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	Encrypted  bool      `json:"encrypted"`
	ClientTime time.Time `json:"client_time,omitempty"`
}

// SaveSystemRequest stores one system notice.
type SaveSystemRequest struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// SaveResponse returns the message as persisted.
type SaveResponse struct {
	Message domain.Message `json:"message"`
}

// HistoryRequest loads recent messages for a room.
type HistoryRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
}

// HistoryResponse carries the history page, oldest first.
type HistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}

// FingerprintRequest computes the digest of a history page.
type FingerprintRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
}

// FingerprintResponse carries the hex digest.
type FingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
}
