package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	h := newTestHarness()

	alice, aliceConn := h.connect(t, "token-alice")

	acks := aliceConn.events(t, EventConnectionAck)
	require.Len(t, acks, 1)
	var ack ConnectionAck
	require.NoError(t, json.Unmarshal(acks[0], &ack))
	assert.Equal(t, "user-alice", ack.UserID)
	assert.Equal(t, "alice", ack.Username)
	assert.Equal(t, DefaultRoom, ack.Room)

	assert.True(t, h.broker.Registry().IsMember(alice.ID, DefaultRoom))
	assert.Equal(t, StateAuthenticated, alice.State())
}

func TestConnectNotifiesDefaultRoomPeers(t *testing.T) {
	h := newTestHarness()

	_, aliceConn := h.connect(t, "token-alice")
	h.connect(t, "token-bob")

	joins := aliceConn.events(t, EventUserJoined)
	require.Len(t, joins, 1)
	var presence PresenceEvent
	require.NoError(t, json.Unmarshal(joins[0], &presence))
	assert.Equal(t, "bob", presence.Username)
	assert.Equal(t, DefaultRoom, presence.RoomID)
}

func TestConnectRejectsBadToken(t *testing.T) {
	h := newTestHarness()

	conn := &fakeConn{}
	session := NewSession(uuid.New().String(), conn)
	err := h.broker.Connect(context.Background(), session, "token-forged")

	require.ErrorIs(t, err, ErrAuthentication)
	_, registered := h.broker.Registry().Session(session.ID)
	assert.False(t, registered, "rejected session must not be registered")
	assert.Zero(t, conn.countEvents(t, EventConnectionAck))
}

func TestConnectRejectsMissingToken(t *testing.T) {
	h := newTestHarness()

	session := NewSession(uuid.New().String(), &fakeConn{})
	err := h.broker.Connect(context.Background(), session, "  ")
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestJoinRoom(t *testing.T) {
	h := newTestHarness()
	alice, aliceConn := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")

	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))

	assert.True(t, h.broker.Registry().IsMember(alice.ID, "abc123"))
	assert.True(t, h.broker.Registry().IsMember(bob.ID, "abc123"))

	acks := aliceConn.events(t, EventRoomJoined)
	require.NotEmpty(t, acks)
	var ack RoomAck
	require.NoError(t, json.Unmarshal(acks[len(acks)-1], &ack))
	assert.Equal(t, "abc123", ack.RoomID)

	// Alice was already in the room, so she hears about bob. Bob gets no
	// presence event about his own join.
	assert.Equal(t, 1, countPresence(t, aliceConn, EventUserJoined, "abc123"))
	assert.Zero(t, countPresence(t, bobConn, EventUserJoined, "abc123"))
}

// countPresence counts presence events of one type scoped to a room.
func countPresence(t *testing.T, conn *fakeConn, eventType, roomID string) int {
	t.Helper()
	count := 0
	for _, payload := range conn.events(t, eventType) {
		var event PresenceEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		if event.RoomID == roomID {
			count++
		}
	}
	return count
}

func TestJoinRoomUnauthorized(t *testing.T) {
	h := newTestHarness()
	alice, aliceConn := h.connect(t, "token-alice")
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))

	carol, _ := h.connect(t, "token-carol")
	err := h.broker.JoinRoom(context.Background(), carol, "abc123")

	require.ErrorIs(t, err, ErrAuthorization)
	assert.False(t, h.broker.Registry().IsMember(carol.ID, "abc123"),
		"failed join must not change membership")
	assert.Zero(t, countPresence(t, aliceConn, EventUserJoined, "abc123"),
		"failed join must not notify existing members")
}

func TestJoinRoomNotFound(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")

	err := h.broker.JoinRoom(context.Background(), alice, "no-such-room")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, h.broker.Registry().IsMember(alice.ID, "no-such-room"))
}

func TestJoinRoomIdempotent(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")

	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	joinsAfterFirst := bobConn.countEvents(t, EventUserJoined)

	// Rejoining acks again but must not duplicate membership or
	// re-notify peers.
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))

	assert.Equal(t, joinsAfterFirst, bobConn.countEvents(t, EventUserJoined))
	members := h.broker.Registry().Members("abc123")
	count := 0
	for _, m := range members {
		if m.ID == alice.ID {
			count++
		}
	}
	assert.Equal(t, 1, count, "membership is a set")
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	h := newTestHarness()
	alice, aliceConn := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))

	err := h.broker.Send(context.Background(), alice, SendRequest{RoomID: "abc123", Content: "hello"})
	require.NoError(t, err)

	// The message was persisted.
	require.Equal(t, 1, h.store.count())
	stored := h.store.saved[0]
	assert.Equal(t, "hello", stored.Content)
	assert.Equal(t, "alice", stored.Sender)

	// Both members, sender included, received the broadcast carrying the
	// store-assigned id.
	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn} {
		payloads := conn.events(t, EventMessage)
		require.Len(t, payloads, 1, "%s should receive exactly one message", name)
		var event MessageEvent
		require.NoError(t, json.Unmarshal(payloads[0], &event))
		assert.Equal(t, stored.ID, event.ID)
		assert.Equal(t, "hello", event.Content)
		assert.Equal(t, "alice", event.Sender)
		assert.Equal(t, "abc123", event.RoomID)
	}

	// Only the sender gets the delivery receipt.
	receipts := aliceConn.events(t, EventMessageDelivered)
	require.Len(t, receipts, 1)
	var receipt DeliveryReceipt
	require.NoError(t, json.Unmarshal(receipts[0], &receipt))
	assert.Equal(t, stored.ID, receipt.MessageID)
	assert.Zero(t, bobConn.countEvents(t, EventMessageDelivered))
}

func TestSendPersistenceFailureSuppressesBroadcast(t *testing.T) {
	h := newTestHarness()
	alice, aliceConn := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))

	h.store.failSave = true
	err := h.broker.Send(context.Background(), alice, SendRequest{RoomID: "abc123", Content: "hello"})

	require.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, aliceConn.countEvents(t, EventMessage))
	assert.Zero(t, bobConn.countEvents(t, EventMessage))
	assert.Zero(t, aliceConn.countEvents(t, EventMessageDelivered))
}

func TestSendRequiresMembership(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")

	// Alice is authorized on abc123 but has not joined it.
	err := h.broker.Send(context.Background(), alice, SendRequest{RoomID: "abc123", Content: "hello"})

	require.ErrorIs(t, err, ErrAuthorization)
	assert.Zero(t, h.store.count(), "nothing may be persisted for a rejected send")
}

func TestSendValidation(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")

	tests := []struct {
		name string
		req  SendRequest
	}{
		{"empty content", SendRequest{RoomID: DefaultRoom, Content: ""}},
		{"blank content", SendRequest{RoomID: DefaultRoom, Content: "   "}},
		{"missing room", SendRequest{Content: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.broker.Send(context.Background(), alice, tt.req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, h.store.count())
}

func TestSendBroadcastScoping(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")
	carol, carolConn := h.connect(t, "token-carol")

	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), carol, "xyz789"))

	require.NoError(t, h.broker.Send(context.Background(), alice, SendRequest{RoomID: "abc123", Content: "hello"}))

	assert.Equal(t, 1, bobConn.countEvents(t, EventMessage))
	assert.Zero(t, carolConn.countEvents(t, EventMessage),
		"members of other rooms must not receive the broadcast")
}

func TestSendToDefaultRoom(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")
	_, bobConn := h.connect(t, "token-bob")

	require.NoError(t, h.broker.Send(context.Background(), alice, SendRequest{RoomID: DefaultRoom, Content: "hi all"}))

	assert.Equal(t, 1, bobConn.countEvents(t, EventMessage))
	// Sends to the default room do not stamp room store activity.
	assert.Empty(t, h.rooms.touched)
}

func TestSendRateLimited(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")

	var err error
	for i := 0; i < burstSize; i++ {
		err = h.broker.Send(context.Background(), alice, SendRequest{RoomID: DefaultRoom, Content: "spam"})
		require.NoError(t, err, "send %d within the burst should pass", i+1)
	}

	err = h.broker.Send(context.Background(), alice, SendRequest{RoomID: DefaultRoom, Content: "spam"})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestLeaveRoom(t *testing.T) {
	h := newTestHarness()
	alice, aliceConn := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))

	require.NoError(t, h.broker.LeaveRoom(alice, "abc123"))

	assert.False(t, h.broker.Registry().IsMember(alice.ID, "abc123"))
	assert.Equal(t, 1, aliceConn.countEvents(t, EventRoomLeft))
	assert.Equal(t, 1, bobConn.countEvents(t, EventUserLeft))

	// Leaving again is a validation error, not a crash.
	require.ErrorIs(t, h.broker.LeaveRoom(alice, "abc123"), ErrValidation)
}

func TestLeaveDefaultRoomDisallowed(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")

	require.ErrorIs(t, h.broker.LeaveRoom(alice, DefaultRoom), ErrValidation)
	assert.True(t, h.broker.Registry().IsMember(alice.ID, DefaultRoom))
}

func TestDisconnectTeardown(t *testing.T) {
	h := newTestHarness()
	alice, aliceConn := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")
	carol, carolConn := h.connect(t, "token-carol")

	// Alice is in two rooms alongside different peers.
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), bob, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "xyz789"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), carol, "xyz789"))

	bobLeftBefore := bobConn.countEvents(t, EventUserLeft)
	carolLeftBefore := carolConn.countEvents(t, EventUserLeft)

	h.broker.Disconnect(alice)

	assert.False(t, h.broker.Registry().IsMember(alice.ID, "abc123"))
	assert.False(t, h.broker.Registry().IsMember(alice.ID, "xyz789"))
	assert.False(t, h.broker.Registry().IsMember(alice.ID, DefaultRoom))
	_, registered := h.broker.Registry().Session(alice.ID)
	assert.False(t, registered)
	assert.True(t, aliceConn.isClosed())

	// Exactly one userLeft per shared room.
	assert.Equal(t, bobLeftBefore+2, bobConn.countEvents(t, EventUserLeft),
		"bob shares abc123 and the default room with alice")
	assert.Equal(t, carolLeftBefore+2, carolConn.countEvents(t, EventUserLeft),
		"carol shares xyz789 and the default room with alice")

	// Disconnect is idempotent.
	h.broker.Disconnect(alice)
	assert.Equal(t, bobLeftBefore+2, bobConn.countEvents(t, EventUserLeft))
}

func TestDisconnectedSessionCannotSend(t *testing.T) {
	h := newTestHarness()
	alice, _ := h.connect(t, "token-alice")
	h.broker.Disconnect(alice)

	err := h.broker.Send(context.Background(), alice, SendRequest{RoomID: DefaultRoom, Content: "ghost"})
	require.ErrorIs(t, err, ErrAuthorization,
		"a torn-down session is in no fan-out set, so sends are refused")
}

func TestSweeperPurgesIdleSessions(t *testing.T) {
	h := newTestHarness()
	sweeper := NewSweeper(h.broker, DefaultSweepInterval, DefaultIdleTimeout, &mockLogger{})

	alice, aliceConn := h.connect(t, "token-alice")
	bob, bobConn := h.connect(t, "token-bob")
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "abc123"))
	require.NoError(t, h.broker.JoinRoom(context.Background(), alice, "xyz789"))

	// Alice went silent; bob stays fresh.
	alice.mu.Lock()
	alice.lastSeen = time.Now().Add(-2 * DefaultIdleTimeout)
	alice.mu.Unlock()

	purged := sweeper.SweepOnce(time.Now())

	assert.Equal(t, 1, purged)
	assert.True(t, aliceConn.isClosed())
	assert.False(t, h.broker.Registry().IsMember(alice.ID, "abc123"))
	assert.False(t, h.broker.Registry().IsMember(alice.ID, "xyz789"))
	assert.True(t, h.broker.Registry().IsMember(bob.ID, DefaultRoom))
	assert.GreaterOrEqual(t, bobConn.countEvents(t, EventUserLeft), 1,
		"remaining members hear about the purge")
}

func TestSweeperPurgesUnreachableSessions(t *testing.T) {
	h := newTestHarness()
	sweeper := NewSweeper(h.broker, DefaultSweepInterval, DefaultIdleTimeout, &mockLogger{})

	conn := &fakeConn{pingErr: assert.AnError}
	session := NewSession(uuid.New().String(), conn)
	require.NoError(t, h.broker.Connect(context.Background(), session, "token-alice"))

	purged := sweeper.SweepOnce(time.Now())

	assert.Equal(t, 1, purged)
	_, registered := h.broker.Registry().Session(session.ID)
	assert.False(t, registered)
}

func TestSweeperKeepsHealthySessions(t *testing.T) {
	h := newTestHarness()
	sweeper := NewSweeper(h.broker, DefaultSweepInterval, DefaultIdleTimeout, &mockLogger{})

	alice, _ := h.connect(t, "token-alice")

	purged := sweeper.SweepOnce(time.Now())

	assert.Zero(t, purged)
	assert.True(t, h.broker.Registry().IsMember(alice.ID, DefaultRoom))
}
