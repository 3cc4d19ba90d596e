package room

import (
	"errors"
	"strings"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/room"
	"gorm.io/gorm"
)

var (
	// ErrRoomNotFound is returned when a room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when the room name is already taken.
	ErrRoomExists = errors.New("room name already exists")
)

// RoomRepository handles room persistence using GORM.
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new RoomRepository.
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts a room and its initial participant rows in one transaction.
func (r *RoomRepository) Create(room *domain.Room, participantIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrRoomExists
			}
			return err
		}
		now := time.Now()
		for _, userID := range participantIDs {
			p := domain.Participant{RoomID: room.ID, UserID: userID, CreatedAt: now}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID returns a room by ID.
func (r *RoomRepository) FindByID(id string) (*domain.Room, error) {
	var room domain.Room
	result := r.db.First(&room, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, result.Error
	}
	return &room, nil
}

// NameExists checks whether a room name is taken, case-insensitively.
func (r *RoomRepository) NameExists(name string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.Room{}).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// Participants returns the user ids subscribed to a room.
func (r *RoomRepository) Participants(roomID string) ([]string, error) {
	var ids []string
	result := r.db.Model(&domain.Participant{}).
		Where("room_id = ?", roomID).
		Order("created_at").
		Pluck("user_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// IsParticipant checks durable room membership.
func (r *RoomRepository) IsParticipant(roomID, userID string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// AddParticipants inserts the given user ids, skipping ones already present.
func (r *RoomRepository) AddParticipants(roomID string, userIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, userID := range userIDs {
			var count int64
			if err := tx.Model(&domain.Participant{}).
				Where("room_id = ? AND user_id = ?", roomID, userID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			p := domain.Participant{RoomID: roomID, UserID: userID, CreatedAt: now}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return tx.Model(&domain.Room{}).
			Where("id = ?", roomID).
			Update("last_activity", now).Error
	})
}

// RemoveParticipant deletes one membership row. When the room ends up with
// no participants it is deleted entirely. Reports whether the room was
// deleted.
func (r *RoomRepository) RemoveParticipant(roomID, userID string) (bool, error) {
	deleted := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Participant{}, "room_id = ? AND user_id = ?", roomID, userID).Error; err != nil {
			return err
		}
		var remaining int64
		if err := tx.Model(&domain.Participant{}).
			Where("room_id = ?", roomID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			deleted = true
			return tx.Delete(&domain.Room{}, "id = ?", roomID).Error
		}
		return tx.Model(&domain.Room{}).
			Where("id = ?", roomID).
			Update("last_activity", time.Now()).Error
	})
	return deleted, err
}

// ListForUser returns the rooms the user participates in plus public rooms,
// most recently active first.
func (r *RoomRepository) ListForUser(userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	result := r.db.
		Where("is_private = ? OR id IN (?)",
			false,
			r.db.Model(&domain.Participant{}).Select("room_id").Where("user_id = ?", userID),
		).
		Order("last_activity DESC").
		Find(&rooms)
	if result.Error != nil {
		return nil, result.Error
	}
	return rooms, nil
}

// ParticipantCount returns the size of a room's durable participant set.
func (r *RoomRepository) ParticipantCount(roomID string) (int64, error) {
	var count int64
	result := r.db.Model(&domain.Participant{}).
		Where("room_id = ?", roomID).
		Count(&count)
	return count, result.Error
}

// TouchActivity stamps the room's last activity time.
func (r *RoomRepository) TouchActivity(roomID string) error {
	return r.db.Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("last_activity", time.Now()).Error
}
