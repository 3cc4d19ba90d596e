package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

const (
	// authTimeout bounds the handshake: token verification must finish
	// within this window or the connection is dropped.
	authTimeout = 10 * time.Second

	// readWait is how long the read loop waits for traffic (or a pong)
	// before the transport is considered dead.
	readWait = 90 * time.Second

	// closeAuthFailure is the close code sent when the handshake is
	// rejected, distinguishable from generic connectivity failures so
	// clients redirect to re-authentication instead of retrying.
	closeAuthFailure = 4401
)

// Handler adapts the broker to the websocket transport: upgrade
// negotiation, the handshake, the per-connection read loop and dispatch
// of inbound events.
type Handler struct {
	broker *Broker
	logger types.Logger
}

// NewHandler creates a transport handler for the broker.
func NewHandler(b *Broker, logger types.Logger) *Handler {
	return &Handler{broker: b, logger: logger}
}

// UpgradeGuard rejects plain HTTP requests on the websocket route.
func (h *Handler) UpgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocket returns the fiber handler serving broker connections.
func (h *Handler) WebSocket() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Handler) serve(c *websocket.Conn) {
	session := NewSession(uuid.New().String(), c)

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	err := h.broker.Connect(ctx, session, c.Query("token"))
	cancel()
	if err != nil {
		h.logger.Warn("Handshake rejected", "session", session.ID, "error", err)
		h.closeWithAuthFailure(c)
		return
	}
	defer h.broker.Disconnect(session)

	c.SetPongHandler(func(string) error {
		session.Touch()
		return c.SetReadDeadline(time.Now().Add(readWait))
	})
	if err := c.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		return
	}

	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Connection error", "session", session.ID, "error", err)
			}
			return
		}
		session.Touch()
		_ = c.SetReadDeadline(time.Now().Add(readWait))

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			session.SendError(ErrValidation)
			continue
		}
		h.dispatch(session, env)
	}
}

// dispatch routes one inbound event. Recoverable failures go back to
// the originating session only; nothing here terminates the connection.
func (h *Handler) dispatch(session *Session, env Envelope) {
	ctx := context.Background()

	switch env.Type {
	case EventJoinDefaultRoom:
		if err := h.broker.JoinRoom(ctx, session, DefaultRoom); err != nil {
			session.SendError(err)
		}

	case EventJoinRoom:
		var req JoinRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			session.SendError(ErrValidation)
			return
		}
		if err := h.broker.JoinRoom(ctx, session, req.RoomID); err != nil {
			session.SendError(err)
		}

	case EventLeaveRoom:
		var req LeaveRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			session.SendError(ErrValidation)
			return
		}
		if err := h.broker.LeaveRoom(session, req.RoomID); err != nil {
			session.SendError(err)
		}

	case EventSendMessage:
		var req SendRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			session.SendError(ErrValidation)
			return
		}
		if err := h.broker.Send(ctx, session, req); err != nil {
			session.SendError(err)
		}

	default:
		session.SendError(ErrValidation)
	}
}

func (h *Handler) closeWithAuthFailure(c *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(closeAuthFailure, "authentication failed")
	_ = c.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = c.Close()
}
