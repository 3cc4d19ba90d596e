package message

import (
	"errors"

	domain "github.com/keenpaul29/secure-chat/domain/message"
	"gorm.io/gorm"
)

// ErrMessageNotFound is returned when a message does not exist.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepository handles the append-only message log using GORM.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert appends one message record.
func (r *MessageRepository) Insert(msg *domain.Message) error {
	return r.db.Create(msg).Error
}

// Recent returns up to limit most recent messages for a room, ordered
// oldest first so a client can render them directly.
func (r *MessageRepository) Recent(roomID string, limit int) ([]domain.Message, error) {
	var newestFirst []domain.Message
	result := r.db.
		Where("room_id = ?", roomID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&newestFirst)
	if result.Error != nil {
		return nil, result.Error
	}

	messages := make([]domain.Message, len(newestFirst))
	for i := range newestFirst {
		messages[len(newestFirst)-1-i] = newestFirst[i]
	}
	return messages, nil
}

// FindByID returns one message.
func (r *MessageRepository) FindByID(id string) (*domain.Message, error) {
	var msg domain.Message
	result := r.db.First(&msg, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return &msg, nil
}

// CountForRoom returns the number of stored messages for a room.
func (r *MessageRepository) CountForRoom(roomID string) (int64, error) {
	var count int64
	result := r.db.Model(&domain.Message{}).
		Where("room_id = ?", roomID).
		Count(&count)
	return count, result.Error
}
