package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been persisted and
// broadcast to its room.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Encrypted bool      `json:"encrypted"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a session joins a room.
type UserJoinedEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a session leaves a room, explicitly or by
// disconnect.
type UserLeftEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when a new room is created over the HTTP API.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	CreatedBy string    `json:"created_by"`
	IsPrivate bool      `json:"is_private"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"broker",
		"MessageSent",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"broker",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"broker",
		"UserLeft",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"room",
		"RoomCreated",
		"v1",
	)
)
