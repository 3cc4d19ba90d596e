package room

import (
	"time"
)

// Participant limits carried over from the room schema.
const (
	MinParticipants        = 2
	DefaultMaxParticipants = 50
	MaxParticipantsCap     = 100
)

// Room represents a chat room record.
type Room struct {
	ID              string    `gorm:"primaryKey;type:text" json:"id"`
	Name            string    `gorm:"uniqueIndex;not null;type:text" json:"name"`
	CreatorID       string    `gorm:"not null;index;type:text" json:"creator_id"`
	IsPrivate       bool      `gorm:"not null;default:true" json:"is_private"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	MaxParticipants int       `gorm:"not null" json:"max_participants"`
	LastActivity    time.Time `gorm:"index" json:"last_activity"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the table name for the Room entity.
func (Room) TableName() string {
	return "rooms"
}

// Participant links a user to a room.
type Participant struct {
	RoomID    string    `gorm:"primaryKey;type:text" json:"room_id"`
	UserID    string    `gorm:"primaryKey;index;type:text" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Participant entity.
func (Participant) TableName() string {
	return "room_participants"
}

// View is a room together with its resolved participant list, the shape
// returned by the room API.
type View struct {
	Room
	Participants []string `json:"participants"`
}
