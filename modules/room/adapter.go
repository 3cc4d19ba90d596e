package room

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/keenpaul29/secure-chat/domain/room"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RoomPort is the interface other modules use to reach the room store.
type RoomPort interface {
	Create(ctx context.Context, req CreateRoomRequest) (*domain.View, error)
	Get(ctx context.Context, roomID, userID string) (*domain.View, error)
	List(ctx context.Context, userID string) ([]domain.View, error)
	Authorize(ctx context.Context, roomID, userID string) (exists, allowed bool, err error)
	AddParticipants(ctx context.Context, roomID, requesterID string, userIDs []string) (*domain.View, error)
	RemoveParticipant(ctx context.Context, roomID, requesterID, userID string) (roomDeleted bool, err error)
	TouchActivity(ctx context.Context, roomID string) error
}

// Adapter implements RoomPort over the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new room adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	return &Adapter{container: container}
}

// Create makes a new room.
func (a *Adapter) Create(ctx context.Context, req CreateRoomRequest) (*domain.View, error) {
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceCreateRoom,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("create-room request failed: %w", err)
	}
	return resp.Room, nil
}

// Get returns one room view.
func (a *Adapter) Get(ctx context.Context, roomID, userID string) (*domain.View, error) {
	req := GetRoomRequest{RoomID: roomID, UserID: userID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceGetRoom,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("get-room request failed: %w", err)
	}
	return resp.Room, nil
}

// List returns the rooms visible to a user.
func (a *Adapter) List(ctx context.Context, userID string) ([]domain.View, error) {
	req := ListRoomsRequest{UserID: userID}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceListRooms,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("list-rooms request failed: %w", err)
	}
	return resp.Rooms, nil
}

// Authorize checks room existence and user access in one round trip.
func (a *Adapter) Authorize(ctx context.Context, roomID, userID string) (bool, bool, error) {
	req := AuthorizeRequest{RoomID: roomID, UserID: userID}
	var resp AuthorizeResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceAuthorize,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return false, false, fmt.Errorf("authorize request failed: %w", err)
	}
	return resp.Exists, resp.Allowed, nil
}

// AddParticipants adds users to a room.
func (a *Adapter) AddParticipants(ctx context.Context, roomID, requesterID string, userIDs []string) (*domain.View, error) {
	req := AddParticipantsRequest{RoomID: roomID, RequesterID: requesterID, UserIDs: userIDs}
	var resp AddParticipantsResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceAddParticipants,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("add-participants request failed: %w", err)
	}
	return resp.Room, nil
}

// RemoveParticipant removes one user from a room.
func (a *Adapter) RemoveParticipant(ctx context.Context, roomID, requesterID, userID string) (bool, error) {
	req := RemoveParticipantRequest{RoomID: roomID, RequesterID: requesterID, UserID: userID}
	var resp RemoveParticipantResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceRemoveParticipant,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return false, fmt.Errorf("remove-participant request failed: %w", err)
	}
	return resp.RoomDeleted, nil
}

// TouchActivity stamps the room's last activity time.
func (a *Adapter) TouchActivity(ctx context.Context, roomID string) error {
	req := TouchActivityRequest{RoomID: roomID}
	var resp TouchActivityResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceTouchActivity,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return fmt.Errorf("touch-activity request failed: %w", err)
	}
	return nil
}
