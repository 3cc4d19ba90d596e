package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	msgdomain "github.com/keenpaul29/secure-chat/domain/message"
	userdomain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// fakeConn is an in-memory Conn that records every frame written to it.
type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	pingErr error
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) WriteControl(_ int, _ []byte, _ time.Time) error {
	return c.pingErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events decodes every recorded frame of the given type.
func (c *fakeConn) events(t *testing.T, eventType string) []json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var payloads []json.RawMessage
	for _, frame := range c.frames {
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("recorded frame is not an envelope: %v", err)
		}
		if env.Type == eventType {
			payloads = append(payloads, env.Payload)
		}
	}
	return payloads
}

func (c *fakeConn) countEvents(t *testing.T, eventType string) int {
	t.Helper()
	return len(c.events(t, eventType))
}

// fakeAuth validates tokens against a fixed token -> claims table.
type fakeAuth struct {
	tokens map[string]userdomain.Claims
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*userdomain.Claims, error) {
	claims, ok := f.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token rejected")
	}
	return &claims, nil
}

// fakeRooms answers authorization from a fixed room -> allowed-users table.
type fakeRooms struct {
	mu      sync.Mutex
	allowed map[string]map[string]bool // roomID -> userID -> allowed
	touched []string
}

func (f *fakeRooms) Authorize(_ context.Context, roomID, userID string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, ok := f.allowed[roomID]
	if !ok {
		return false, false, nil
	}
	return true, users[userID], nil
}

func (f *fakeRooms) TouchActivity(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, roomID)
	return nil
}

// fakeStore records persisted messages and can be told to fail.
type fakeStore struct {
	mu       sync.Mutex
	saved    []*msgdomain.Message
	failSave bool
}

func (f *fakeStore) Save(_ context.Context, roomID, sender, content string, encrypted bool, _ time.Time) (*msgdomain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return nil, fmt.Errorf("store unavailable")
	}
	msg := &msgdomain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Kind:      msgdomain.KindUser,
		Encrypted: encrypted,
	}
	f.saved = append(f.saved, msg)
	return msg, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// testHarness bundles a broker with its fakes.
type testHarness struct {
	broker *Broker
	auth   *fakeAuth
	rooms  *fakeRooms
	store  *fakeStore
}

func newTestHarness() *testHarness {
	auth := &fakeAuth{tokens: map[string]userdomain.Claims{
		"token-alice": {UserID: "user-alice", Username: "alice"},
		"token-bob":   {UserID: "user-bob", Username: "bob"},
		"token-carol": {UserID: "user-carol", Username: "carol"},
	}}
	rooms := &fakeRooms{allowed: map[string]map[string]bool{
		"abc123": {"user-alice": true, "user-bob": true},
		"xyz789": {"user-alice": true, "user-bob": true, "user-carol": true},
	}}
	store := &fakeStore{}

	b := NewBroker(NewRegistry(), auth, rooms, store, &mockLogger{})
	return &testHarness{broker: b, auth: auth, rooms: rooms, store: store}
}

// connect runs the handshake for the given token and returns the
// session with its recording connection.
func (h *testHarness) connect(t *testing.T, token string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	session := NewSession(uuid.New().String(), conn)
	if err := h.broker.Connect(context.Background(), session, token); err != nil {
		t.Fatalf("Connect(%s) error = %v", token, err)
	}
	return session, conn
}
