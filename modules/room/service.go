package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/room"
	"github.com/google/uuid"
)

var (
	// ErrInvalidName is returned for names outside the 2..50 char range.
	ErrInvalidName = errors.New("room name must be between 2 and 50 characters")
	// ErrAccessDenied is returned when a user may not see a private room.
	ErrAccessDenied = errors.New("access denied to room")
	// ErrNotCreator is returned when a non-creator attempts administration.
	ErrNotCreator = errors.New("only the room creator may do this")
	// ErrRoomFull is returned when adding members would exceed capacity.
	ErrRoomFull = errors.New("room participant limit exceeded")
	// ErrCreatorRemoval is returned when removing the room creator.
	ErrCreatorRemoval = errors.New("cannot remove room creator")
)

// RoomService implements room administration and access checks.
type RoomService struct {
	repo *RoomRepository
}

// NewRoomService creates a new RoomService.
func NewRoomService(repo *RoomRepository) *RoomService {
	return &RoomService{repo: repo}
}

// Create makes a new room. The creator is always a participant. A zero
// maxParticipants selects the default capacity; other values are clamped
// to the schema bounds.
func (s *RoomService) Create(_ context.Context, name, creatorID, description string, participants []string, isPrivate bool, maxParticipants int) (*domain.View, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 50 {
		return nil, ErrInvalidName
	}
	capacity := clampCapacity(maxParticipants)

	exists, err := s.repo.NameExists(name)
	if err != nil {
		return nil, fmt.Errorf("failed to check room name: %w", err)
	}
	if exists {
		return nil, ErrRoomExists
	}

	// Creator first, then the rest, deduplicated.
	ids := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range participants {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) > capacity {
		return nil, ErrRoomFull
	}

	now := time.Now()
	room := &domain.Room{
		ID:              uuid.New().String(),
		Name:            name,
		CreatorID:       creatorID,
		IsPrivate:       isPrivate,
		Description:     description,
		MaxParticipants: capacity,
		LastActivity:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(room, ids); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return &domain.View{Room: *room, Participants: ids}, nil
}

// Get returns a room with its participants, enforcing access.
func (s *RoomService) Get(_ context.Context, roomID, userID string) (*domain.View, error) {
	room, err := s.repo.FindByID(roomID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.hasAccess(room, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrAccessDenied
	}

	participants, err := s.repo.Participants(roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	return &domain.View{Room: *room, Participants: participants}, nil
}

// List returns the rooms visible to a user.
func (s *RoomService) List(_ context.Context, userID string) ([]domain.View, error) {
	rooms, err := s.repo.ListForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	views := make([]domain.View, 0, len(rooms))
	for i := range rooms {
		participants, err := s.repo.Participants(rooms[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load participants: %w", err)
		}
		views = append(views, domain.View{Room: rooms[i], Participants: participants})
	}
	return views, nil
}

// Authorize is the broker-facing check: the room must exist and the user
// must be its creator, one of its participants, or the room must be public.
func (s *RoomService) Authorize(_ context.Context, roomID, userID string) (exists, allowed bool, err error) {
	room, err := s.repo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	allowed, err = s.hasAccess(room, userID)
	return true, allowed, err
}

// AddParticipants adds users to a room, creator-only and capacity-checked.
func (s *RoomService) AddParticipants(_ context.Context, roomID, requesterID string, userIDs []string) (*domain.View, error) {
	room, err := s.repo.FindByID(roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID != requesterID {
		return nil, ErrNotCreator
	}
	if len(userIDs) == 0 {
		return nil, errors.New("no participants provided")
	}

	count, err := s.repo.ParticipantCount(roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if int(count)+len(userIDs) > room.MaxParticipants {
		return nil, ErrRoomFull
	}

	if err := s.repo.AddParticipants(roomID, userIDs); err != nil {
		return nil, fmt.Errorf("failed to add participants: %w", err)
	}

	participants, err := s.repo.Participants(roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	return &domain.View{Room: *room, Participants: participants}, nil
}

// RemoveParticipant removes a user from a room. The creator cannot be
// removed; a room whose last participant leaves is deleted.
func (s *RoomService) RemoveParticipant(_ context.Context, roomID, requesterID, userID string) (roomDeleted bool, err error) {
	room, err := s.repo.FindByID(roomID)
	if err != nil {
		return false, err
	}
	// The creator may remove anyone; anyone may remove themselves.
	if room.CreatorID != requesterID && requesterID != userID {
		return false, ErrNotCreator
	}
	if room.CreatorID == userID {
		return false, ErrCreatorRemoval
	}
	return s.repo.RemoveParticipant(roomID, userID)
}

// TouchActivity stamps the room's last activity time.
func (s *RoomService) TouchActivity(_ context.Context, roomID string) error {
	return s.repo.TouchActivity(roomID)
}

// clampCapacity maps a requested capacity into the schema bounds. Zero
// means "use the default".
func clampCapacity(n int) int {
	switch {
	case n == 0:
		return domain.DefaultMaxParticipants
	case n < domain.MinParticipants:
		return domain.MinParticipants
	case n > domain.MaxParticipantsCap:
		return domain.MaxParticipantsCap
	}
	return n
}

func (s *RoomService) hasAccess(room *domain.Room, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if !room.IsPrivate {
		return true, nil
	}
	if room.CreatorID == userID {
		return true, nil
	}
	return s.repo.IsParticipant(room.ID, userID)
}
