package room

import (
	domain "github.com/keenpaul29/secure-chat/domain/room"
)

// Service names registered in the service container.
const (
	ServiceCreateRoom        = "create-room"
	ServiceGetRoom           = "get-room"
	ServiceListRooms         = "list-rooms"
	ServiceAuthorize         = "authorize"
	ServiceAddParticipants   = "add-participants"
	ServiceRemoveParticipant = "remove-participant"
	ServiceTouchActivity     = "touch-activity"
)

// CreateRoomRequest represents a room creation request.
type CreateRoomRequest struct {
	Name         string   `json:"name"`
	CreatorID    string   `json:"creator_id"`
	Description  string   `json:"description,omitempty"`
	Participants []string `json:"participants,omitempty"`
	IsPrivate    bool     `json:"is_private"`
	// MaxParticipants is clamped to the schema bounds; zero selects the
	// default capacity.
	MaxParticipants int `json:"max_participants,omitempty"`
}

// CreateRoomResponse carries the created room.
type CreateRoomResponse struct {
	Room *domain.View `json:"room"`
}

// GetRoomRequest represents a get room request.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// GetRoomResponse carries one room view.
type GetRoomResponse struct {
	Room *domain.View `json:"room"`
}

// ListRoomsRequest represents a list rooms request.
type ListRoomsRequest struct {
	UserID string `json:"user_id"`
}

// ListRoomsResponse carries the rooms visible to a user.
type ListRoomsResponse struct {
	Rooms []domain.View `json:"rooms"`
	Total int           `json:"total"`
}

// AuthorizeRequest is the broker's join/access check.
type AuthorizeRequest struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// AuthorizeResponse reports existence and permission separately so the
// caller can distinguish not-found from forbidden.
type AuthorizeResponse struct {
	Exists  bool `json:"exists"`
	Allowed bool `json:"allowed"`
}

// AddParticipantsRequest adds users to a room.
type AddParticipantsRequest struct {
	RoomID      string   `json:"room_id"`
	RequesterID string   `json:"requester_id"`
	UserIDs     []string `json:"user_ids"`
}

// AddParticipantsResponse carries the updated room view.
type AddParticipantsResponse struct {
	Room *domain.View `json:"room"`
}

// RemoveParticipantRequest removes one user from a room.
type RemoveParticipantRequest struct {
	RoomID      string `json:"room_id"`
	RequesterID string `json:"requester_id"`
	UserID      string `json:"user_id"`
}

// RemoveParticipantResponse reports whether the room was deleted along
// with its last participant.
type RemoveParticipantResponse struct {
	RoomDeleted bool `json:"room_deleted"`
}

// TouchActivityRequest stamps a room's last activity.
type TouchActivityRequest struct {
	RoomID string `json:"room_id"`
}

// TouchActivityResponse acknowledges the stamp.
type TouchActivityResponse struct {
	OK bool `json:"ok"`
}
