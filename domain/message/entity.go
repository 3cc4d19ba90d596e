package message

import (
	"time"
)

// Message kinds. System messages are generated by the server, user
// messages carry (possibly encrypted) client payloads.
const (
	KindUser   = "user"
	KindSystem = "system"
)

// MaxContentLength is the longest accepted message body.
const MaxContentLength = 5000

// Message is one persisted chat message. Records are append-only; edit
// flows only flip the Edited metadata.
type Message struct {
	ID        string     `gorm:"primaryKey;type:text" json:"id"`
	RoomID    string     `gorm:"not null;index:idx_room_ts;type:text" json:"room_id"`
	Sender    string     `gorm:"not null;type:text" json:"sender"`
	Content   string     `gorm:"not null;type:text" json:"content"`
	Timestamp time.Time  `gorm:"not null;index:idx_room_ts" json:"timestamp"`
	Kind      string     `gorm:"not null;default:user" json:"type"`
	Encrypted bool       `gorm:"not null;default:false" json:"encrypted"`
	Edited    bool       `gorm:"not null;default:false" json:"edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"-"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}
