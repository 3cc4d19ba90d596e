package broker

import (
	"encoding/json"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/message"
)

// DefaultRoom is the reserved open room every session joins at connect
// time. It is a literal identifier, never a store-assigned room id, and
// requires no authorization.
const DefaultRoom = "global"

// Client-to-server event types.
const (
	EventJoinDefaultRoom = "joinDefaultRoom"
	EventJoinRoom        = "joinRoom"
	EventLeaveRoom       = "leaveRoom"
	EventSendMessage     = "sendMessage"
)

// Server-to-client event types.
const (
	EventConnectionAck    = "connectionAck"
	EventRoomJoined       = "roomJoined"
	EventRoomLeft         = "roomLeft"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventMessage          = "message"
	EventMessageDelivered = "messageDelivered"
	EventError            = "error"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRequest asks to join a room.
type JoinRequest struct {
	RoomID string `json:"room_id"`
}

// LeaveRequest asks to leave a room.
type LeaveRequest struct {
	RoomID string `json:"room_id"`
}

// SendRequest carries one outbound chat message. Content is opaque to
// the broker; when Encrypted is set the payload was ciphered by the
// client before transmission.
type SendRequest struct {
	RoomID    string    `json:"room_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Encrypted bool      `json:"encrypted,omitempty"`
}

// ConnectionAck confirms a successful handshake.
type ConnectionAck struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Room      string `json:"room"`
}

// RoomAck confirms a join or leave.
type RoomAck struct {
	RoomID string `json:"room_id"`
}

// PresenceEvent announces that a user joined or left a room. It is
// synthetic and never persisted.
type PresenceEvent struct {
	RoomID    string    `json:"room_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageEvent is the canonical wire form of a persisted message.
type MessageEvent struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Encrypted bool      `json:"encrypted"`
	Edited    bool      `json:"edited"`
}

// DeliveryReceipt confirms persistence to the sender alone.
type DeliveryReceipt struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent reports a recoverable failure to the originating session.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// messageEventFrom builds the wire form of a stored message.
func messageEventFrom(msg *domain.Message) MessageEvent {
	return MessageEvent{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		Kind:      msg.Kind,
		Encrypted: msg.Encrypted,
		Edited:    msg.Edited,
	}
}
