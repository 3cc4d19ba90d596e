package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	msgdomain "github.com/keenpaul29/secure-chat/domain/message"
	userdomain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/keenpaul29/secure-chat/events"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// TokenValidator verifies bearer tokens presented at connection time.
// Satisfied by the auth module's adapter.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*userdomain.Claims, error)
}

// RoomAuthorizer answers whether a room exists and whether a user may
// enter it. Satisfied by the room module's adapter.
type RoomAuthorizer interface {
	Authorize(ctx context.Context, roomID, userID string) (exists, allowed bool, err error)
	TouchActivity(ctx context.Context, roomID string) error
}

// MessageStore persists chat messages. Satisfied by the message
// module's adapter.
type MessageStore interface {
	Save(ctx context.Context, roomID, sender, content string, encrypted bool, clientTime time.Time) (*msgdomain.Message, error)
}

// Broker owns the session registry and implements the connection
// lifecycle: handshake, join/leave, the validate-persist-broadcast
// pipeline and presence notification.
type Broker struct {
	registry *Registry
	auth     TokenValidator
	rooms    RoomAuthorizer
	messages MessageStore
	eventBus mono.EventBus
	logger   types.Logger
}

// NewBroker creates a broker over the injected collaborators. eventBus
// may be nil; published events are informational and never load-bearing.
func NewBroker(registry *Registry, auth TokenValidator, rooms RoomAuthorizer, messages MessageStore, logger types.Logger) *Broker {
	return &Broker{
		registry: registry,
		auth:     auth,
		rooms:    rooms,
		messages: messages,
		logger:   logger,
	}
}

// SetEventBus attaches the bus used for fire-and-forget domain events.
func (b *Broker) SetEventBus(bus mono.EventBus) {
	b.eventBus = bus
}

// Registry exposes the session registry for the liveness sweep and
// health reporting.
func (b *Broker) Registry() *Registry {
	return b.registry
}

// Connect authenticates a new session against the presented token. On
// success the session is registered and unconditionally subscribed to
// the default room; peers already there are notified. On failure the
// returned error wraps ErrAuthentication and the caller must close the
// connection.
func (b *Broker) Connect(ctx context.Context, session *Session, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", ErrAuthentication)
	}

	claims, err := b.auth.ValidateToken(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if !session.Authenticate(claims.UserID, claims.Username) {
		return fmt.Errorf("%w: connection not in handshake state", ErrAuthentication)
	}

	b.registry.AddSession(session)

	// The default room needs no authorization call.
	others := b.registry.Members(DefaultRoom)
	b.registry.Join(session.ID, DefaultRoom)

	ack := ConnectionAck{
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		Room:      DefaultRoom,
	}
	if err := session.Send(EventConnectionAck, ack); err != nil {
		b.teardown(session)
		return fmt.Errorf("%w: handshake write failed: %v", ErrAuthentication, err)
	}

	b.notifyPresence(EventUserJoined, DefaultRoom, session, others)
	b.publishJoined(DefaultRoom, session)

	b.logger.Info("Session connected", "session", session.ID, "user", session.Username)
	return nil
}

// JoinRoom subscribes a session to a room after checking the room store
// that the room exists and the user is allowed in. Rejoining a room
// already joined acks again without re-notifying peers.
func (b *Broker) JoinRoom(ctx context.Context, session *Session, roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return fmt.Errorf("%w: room id is required", ErrValidation)
	}

	if roomID != DefaultRoom {
		exists, allowed, err := b.rooms.Authorize(ctx, roomID, session.UserID)
		if err != nil {
			return fmt.Errorf("authorization check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, roomID)
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrAuthorization, roomID)
		}
	}

	others := b.registry.Members(roomID)
	joined := b.registry.Join(session.ID, roomID)

	if err := session.Send(EventRoomJoined, RoomAck{RoomID: roomID}); err != nil {
		return err
	}
	if !joined {
		return nil
	}

	b.notifyPresence(EventUserJoined, roomID, session, others)
	b.publishJoined(roomID, session)

	b.logger.Debug("Session joined room", "session", session.ID, "room", roomID)
	return nil
}

// LeaveRoom unsubscribes a session from a room. The default room cannot
// be left.
func (b *Broker) LeaveRoom(session *Session, roomID string) error {
	if roomID == DefaultRoom {
		return fmt.Errorf("%w: cannot leave the default room", ErrValidation)
	}
	if !b.registry.Leave(session.ID, roomID) {
		return fmt.Errorf("%w: not a member of %s", ErrValidation, roomID)
	}

	if err := session.Send(EventRoomLeft, RoomAck{RoomID: roomID}); err != nil {
		return err
	}

	b.notifyPresence(EventUserLeft, roomID, session, b.registry.Members(roomID))
	b.publishLeft(roomID, session)

	b.logger.Debug("Session left room", "session", session.ID, "room", roomID)
	return nil
}

// Send runs the message pipeline: validate, persist, broadcast, then
// confirm delivery to the sender. Nothing is broadcast unless the
// persist step succeeded, so everything peers see exists in history.
//
// Membership is checked against the in-memory fan-out set rather than
// re-read from the room store on every message. That bounds send
// latency at the cost of a window where a participant removed from a
// room mid-session can still post until their next join is re-checked.
func (b *Broker) Send(ctx context.Context, session *Session, req SendRequest) error {
	if !session.allowSend() {
		return fmt.Errorf("%w: slow down", ErrRateLimited)
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if len(req.Content) > msgdomain.MaxContentLength {
		return fmt.Errorf("%w: message content exceeds %d characters", ErrValidation, msgdomain.MaxContentLength)
	}
	if req.RoomID == "" {
		return fmt.Errorf("%w: room id is required", ErrValidation)
	}
	if !b.registry.IsMember(session.ID, req.RoomID) {
		return fmt.Errorf("%w: %s", ErrAuthorization, req.RoomID)
	}

	stored, err := b.messages.Save(ctx, req.RoomID, session.Username, req.Content, req.Encrypted, req.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Broadcast the canonical stored form to everyone currently in the
	// room, sender included.
	event := messageEventFrom(stored)
	for _, member := range b.registry.Members(req.RoomID) {
		if err := member.Send(EventMessage, event); err != nil {
			b.logger.Warn("Broadcast write failed", "session", member.ID, "room", req.RoomID, "error", err)
		}
	}

	receipt := DeliveryReceipt{
		MessageID: stored.ID,
		RoomID:    stored.RoomID,
		Timestamp: stored.Timestamp,
	}
	if err := session.Send(EventMessageDelivered, receipt); err != nil {
		b.logger.Warn("Delivery receipt write failed", "session", session.ID, "error", err)
	}

	if req.RoomID != DefaultRoom {
		if err := b.rooms.TouchActivity(ctx, req.RoomID); err != nil {
			b.logger.Warn("Failed to stamp room activity", "room", req.RoomID, "error", err)
		}
	}

	if b.eventBus != nil {
		sent := events.MessageSentEvent{
			MessageID: stored.ID,
			RoomID:    stored.RoomID,
			Sender:    stored.Sender,
			Encrypted: stored.Encrypted,
			Timestamp: stored.Timestamp,
		}
		if err := events.MessageSentV1.Publish(b.eventBus, sent, nil); err != nil {
			b.logger.Warn("Failed to publish MessageSent event", "error", err)
		}
	}

	return nil
}

// Disconnect tears a session down: it is removed from every room it
// belonged to, remaining members of each get a userLeft event, and the
// transport is closed. Safe to call more than once.
func (b *Broker) Disconnect(session *Session) {
	if !session.MarkDisconnected() {
		return
	}
	b.teardown(session)
	b.logger.Info("Session disconnected", "session", session.ID, "user", session.Username)
}

func (b *Broker) teardown(session *Session) {
	rooms := b.registry.RemoveSession(session.ID)
	for _, roomID := range rooms {
		b.notifyPresence(EventUserLeft, roomID, session, b.registry.Members(roomID))
		b.publishLeft(roomID, session)
	}
	_ = session.Close()
}

// notifyPresence delivers a synthetic joined/left notice to the given
// peers. Presence events are never persisted and never sent back to the
// subject session.
func (b *Broker) notifyPresence(eventType, roomID string, subject *Session, peers []*Session) {
	event := PresenceEvent{
		RoomID:    roomID,
		Username:  subject.Username,
		Timestamp: time.Now().UTC(),
	}
	for _, peer := range peers {
		if peer.ID == subject.ID {
			continue
		}
		if err := peer.Send(eventType, event); err != nil {
			b.logger.Warn("Presence write failed", "session", peer.ID, "room", roomID, "error", err)
		}
	}
}

func (b *Broker) publishJoined(roomID string, session *Session) {
	if b.eventBus == nil {
		return
	}
	event := events.UserJoinedEvent{
		RoomID:    roomID,
		UserID:    session.UserID,
		Username:  session.Username,
		Timestamp: time.Now().UTC(),
	}
	if err := events.UserJoinedV1.Publish(b.eventBus, event, nil); err != nil {
		b.logger.Warn("Failed to publish UserJoined event", "error", err)
	}
}

func (b *Broker) publishLeft(roomID string, session *Session) {
	if b.eventBus == nil {
		return
	}
	event := events.UserLeftEvent{
		RoomID:    roomID,
		UserID:    session.UserID,
		Username:  session.Username,
		Timestamp: time.Now().UTC(),
	}
	if err := events.UserLeftV1.Publish(b.eventBus, event, nil); err != nil {
		b.logger.Warn("Failed to publish UserLeft event", "error", err)
	}
}
