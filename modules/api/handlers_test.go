package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	msgdomain "github.com/keenpaul29/secure-chat/domain/message"
	roomdomain "github.com/keenpaul29/secure-chat/domain/room"
	userdomain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/keenpaul29/secure-chat/modules/room"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
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

// mockRoomPort implements room.RoomPort for testing.
type mockRoomPort struct {
	createFunc            func(ctx context.Context, req room.CreateRoomRequest) (*roomdomain.View, error)
	authorizeFunc         func(ctx context.Context, roomID, userID string) (bool, bool, error)
	removeParticipantFunc func(ctx context.Context, roomID, requesterID, userID string) (bool, error)
}

func (m *mockRoomPort) Create(ctx context.Context, req room.CreateRoomRequest) (*roomdomain.View, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRoomPort) Get(context.Context, string, string) (*roomdomain.View, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRoomPort) List(context.Context, string) ([]roomdomain.View, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRoomPort) Authorize(ctx context.Context, roomID, userID string) (bool, bool, error) {
	if m.authorizeFunc != nil {
		return m.authorizeFunc(ctx, roomID, userID)
	}
	return false, false, errors.New("not implemented")
}

func (m *mockRoomPort) AddParticipants(context.Context, string, string, []string) (*roomdomain.View, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRoomPort) RemoveParticipant(ctx context.Context, roomID, requesterID, userID string) (bool, error) {
	if m.removeParticipantFunc != nil {
		return m.removeParticipantFunc(ctx, roomID, requesterID, userID)
	}
	return false, errors.New("not implemented")
}

func (m *mockRoomPort) TouchActivity(context.Context, string) error {
	return errors.New("not implemented")
}

// mockMessagePort implements message.MessagePort for testing.
type mockMessagePort struct {
	historyCalls int
	fingerprint  string
	history      []msgdomain.Message
	systemSaved  []string // "roomID|content" per SaveSystem call
}

func (m *mockMessagePort) Save(context.Context, string, string, string, bool, time.Time) (*msgdomain.Message, error) {
	return nil, errors.New("not implemented")
}

func (m *mockMessagePort) SaveSystem(_ context.Context, roomID, content string) (*msgdomain.Message, error) {
	m.systemSaved = append(m.systemSaved, roomID+"|"+content)
	return &msgdomain.Message{ID: "sys-1", RoomID: roomID, Content: content, Kind: msgdomain.KindSystem}, nil
}

func (m *mockMessagePort) History(context.Context, string, int) ([]msgdomain.Message, error) {
	m.historyCalls++
	return m.history, nil
}

func (m *mockMessagePort) Fingerprint(context.Context, string, int) (string, error) {
	return m.fingerprint, nil
}

// newTestApp mounts the given handlers behind a stub identity.
func newTestApp(h *Handlers) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(UserContextKey, &userdomain.Claims{UserID: "user-1", Username: "alice"})
		return c.Next()
	})
	app.Post("/rooms", h.CreateRoom)
	app.Delete("/rooms/:id/participants/:userID", h.RemoveParticipant)
	app.Get("/rooms/:id/messages", h.GetRoomHistory)
	return app
}

func TestGetRoomHistory_ConditionalFetch(t *testing.T) {
	msgPort := &mockMessagePort{
		fingerprint: "fp-1",
		history: []msgdomain.Message{
			{ID: "m1", RoomID: "room-1", Sender: "alice", Content: "hello"},
			{ID: "m2", RoomID: "room-1", Sender: "bob", Content: "hi"},
		},
	}
	roomPort := &mockRoomPort{
		authorizeFunc: func(context.Context, string, string) (bool, bool, error) {
			return true, true, nil
		},
	}
	h := NewHandlers(nil, nil, roomPort, msgPort, &mockLogger{})
	app := newTestApp(h)

	// First fetch returns the window and its fingerprint as ETag.
	resp, err := app.Test(httptest.NewRequest("GET", "/rooms/room-1/messages", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	etag := resp.Header.Get(fiber.HeaderETag)
	if etag != `"fp-1"` {
		t.Errorf("ETag = %q, want %q", etag, `"fp-1"`)
	}
	if msgPort.historyCalls != 1 {
		t.Fatalf("history loads = %d, want 1", msgPort.historyCalls)
	}

	// A matching If-None-Match answers 304 without loading the window.
	req := httptest.NewRequest("GET", "/rooms/room-1/messages", nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, etag)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusNotModified)
	}
	if msgPort.historyCalls != 1 {
		t.Errorf("history loads = %d, want 1 after a 304", msgPort.historyCalls)
	}
}

func TestCreateRoom_PersistsCreationNotice(t *testing.T) {
	msgPort := &mockMessagePort{}
	roomPort := &mockRoomPort{
		createFunc: func(_ context.Context, req room.CreateRoomRequest) (*roomdomain.View, error) {
			return &roomdomain.View{
				Room:         roomdomain.Room{ID: "room-1", Name: req.Name, CreatorID: req.CreatorID},
				Participants: []string{req.CreatorID},
			}, nil
		},
	}
	h := NewHandlers(nil, nil, roomPort, msgPort, &mockLogger{})
	app := newTestApp(h)

	req := httptest.NewRequest("POST", "/rooms", strings.NewReader(`{"name":"project-x"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusCreated)
	}

	if len(msgPort.systemSaved) != 1 {
		t.Fatalf("system notices = %d, want 1", len(msgPort.systemSaved))
	}
	if want := "room-1|alice created the room"; msgPort.systemSaved[0] != want {
		t.Errorf("notice = %q, want %q", msgPort.systemSaved[0], want)
	}
}

func TestRemoveParticipant_SelfLeaveNotice(t *testing.T) {
	msgPort := &mockMessagePort{}
	roomPort := &mockRoomPort{
		removeParticipantFunc: func(context.Context, string, string, string) (bool, error) {
			return false, nil
		},
	}
	h := NewHandlers(nil, nil, roomPort, msgPort, &mockLogger{})
	app := newTestApp(h)

	// Leaving yourself persists a notice.
	resp, err := app.Test(httptest.NewRequest("DELETE", "/rooms/room-1/participants/me", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if len(msgPort.systemSaved) != 1 || msgPort.systemSaved[0] != "room-1|alice left the room" {
		t.Errorf("notices = %v, want one leave notice", msgPort.systemSaved)
	}

	// Removing someone else does not.
	resp, err = app.Test(httptest.NewRequest("DELETE", "/rooms/room-1/participants/user-2", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if len(msgPort.systemSaved) != 1 {
		t.Errorf("notices = %v, want no notice for removing another user", msgPort.systemSaved)
	}
}
