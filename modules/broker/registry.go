package broker

import "sync"

// Registry holds all live sessions and the per-room fan-out sets. It is
// instantiated once per broker and injected into handlers; membership
// mutation and snapshotting happen under one lock so a broadcast sees
// either the pre- or post-change set, never a torn one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // sessionID -> session
	rooms    map[string]map[string]struct{} // roomID -> set of sessionIDs
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// AddSession registers a live session.
func (r *Registry) AddSession(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// Session returns a live session by id.
func (r *Registry) Session(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Join adds a session to a room's fan-out set. Membership is a set, so
// joining twice is idempotent; the return value reports whether this
// call changed anything.
func (r *Registry) Join(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	if _, already := members[sessionID]; already {
		return false
	}
	members[sessionID] = struct{}{}
	s.addRoom(roomID)
	return true
}

// Leave removes a session from a room's fan-out set. Returns false when
// the session was not a member.
func (r *Registry) Leave(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(sessionID, roomID)
}

func (r *Registry) leaveLocked(sessionID, roomID string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := members[sessionID]; !member {
		return false
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	if s, ok := r.sessions[sessionID]; ok {
		s.removeRoom(roomID)
	}
	return true
}

// RemoveSession drops a session from the registry and from every room
// it belonged to, returning the list of rooms it was removed from so
// the caller can notify remaining members.
func (r *Registry) RemoveSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)

	rooms := s.Rooms()
	for _, roomID := range rooms {
		r.leaveLocked(sessionID, roomID)
	}
	return rooms
}

// IsMember reports whether a session is in a room's fan-out set.
func (r *Registry) IsMember(sessionID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, member := members[sessionID]
	return member
}

// Members returns a snapshot of the live sessions in a room. An unknown
// or empty room yields an empty slice; broadcasting to it is a no-op.
func (r *Registry) Members(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	sessions := make([]*Session, 0, len(members))
	for id := range members {
		if s, ok := r.sessions[id]; ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Sessions returns a snapshot of every live session, used by the
// liveness sweep.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Counts returns the number of live sessions and active rooms.
func (r *Registry) Counts() (sessions, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.rooms)
}
