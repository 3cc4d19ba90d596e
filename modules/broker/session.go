package broker

import (
	"encoding/json"
	"sync"
	"time"
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateDisconnected
)

// Conn is the slice of a websocket connection the broker needs. The
// production implementation is *websocket.Conn; tests substitute an
// in-memory fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// textMessage matches websocket.TextMessage without importing the
// transport package here.
const textMessage = 1

// pingMessage matches websocket.PingMessage.
const pingMessage = 9

// Session is the broker's in-memory record of one authenticated,
// currently-connected client. It is owned exclusively by the broker;
// room membership changes only through join, leave, or disconnect
// teardown.
type Session struct {
	ID       string
	UserID   string
	Username string

	conn    Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	state    SessionState
	rooms    map[string]struct{}
	lastSeen time.Time
	limiter  *tokenBucket
}

// NewSession creates a session in the Connecting state.
func NewSession(id string, conn Conn) *Session {
	return &Session{
		ID:       id,
		conn:     conn,
		state:    StateConnecting,
		rooms:    make(map[string]struct{}),
		lastSeen: time.Now(),
		limiter:  newTokenBucket(burstSize, messagesPerSecond),
	}
}

// Authenticate transitions the session to Authenticated and records its
// identity. Returns false if the session is not in Connecting state.
func (s *Session) Authenticate(userID, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.UserID = userID
	s.Username = username
	s.state = StateAuthenticated
	return true
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkDisconnected transitions the session to Disconnected. Returns
// false if it already was.
func (s *Session) MarkDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	return true
}

// Touch records peer activity for the liveness sweep.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the last observed peer activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// InRoom reports whether the session has joined the given room.
func (s *Session) InRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns a snapshot of the session's joined rooms.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// addRoom records membership. Returns false when already a member.
func (s *Session) addRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

// removeRoom drops membership. Returns false when not a member.
func (s *Session) removeRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

// allowSend consumes one rate-limit token.
func (s *Session) allowSend() bool {
	return s.limiter.allow()
}

// Send writes one event to the session's connection. Writes are
// serialized per session because websocket connections permit a single
// concurrent writer.
func (s *Session) Send(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Payload: data})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(textMessage, frame)
}

// SendError reports a recoverable failure to this session only.
func (s *Session) SendError(err error) {
	event := ErrorEvent{Code: errorCode(err), Message: err.Error()}
	// Write failures here mean the transport is going away; the read
	// loop will observe that and tear the session down.
	_ = s.Send(EventError, event)
}

// Ping sends a transport-level keepalive probe.
func (s *Session) Ping(deadline time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(pingMessage, nil, deadline)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
