package api

import (
	"encoding/json"
	"fmt"
	"strings"

	userdomain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/keenpaul29/secure-chat/modules/auth"
	"github.com/keenpaul29/secure-chat/modules/message"
	"github.com/keenpaul29/secure-chat/modules/room"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	authContainer mono.ServiceContainer
	authPort      auth.AuthPort
	roomPort      room.RoomPort
	messagePort   message.MessagePort
	logger        types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authContainer mono.ServiceContainer, authPort auth.AuthPort, roomPort room.RoomPort, messagePort message.MessagePort, moduleLogger types.Logger) *Handlers {
	return &Handlers{
		authContainer: authContainer,
		authPort:      authPort,
		roomPort:      roomPort,
		messagePort:   messagePort,
		logger:        moduleLogger,
	}
}

// claims extracts the authenticated identity stored by AuthMiddleware.
func claims(c *fiber.Ctx) (*userdomain.Claims, bool) {
	cl, ok := c.Locals(UserContextKey).(*userdomain.Claims)
	return cl, ok
}

// Register handles account registration (POST /api/v1/auth/register).
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.PublicKey == "" {
		return badRequest(c, "Username, email, password and public key are required")
	}

	authReq := auth.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		PublicKey: req.PublicKey,
	}
	var resp auth.RegisterResponse
	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, auth.ServiceRegister,
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TokenResponse{
		Token:     resp.Token,
		UserID:    resp.UserID,
		Username:  resp.Username,
		Email:     resp.Email,
		PublicKey: resp.PublicKey,
	})
}

// Login handles login (POST /api/v1/auth/login).
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	authReq := auth.LoginRequest{Email: req.Email, Password: req.Password}
	var resp auth.LoginResponse
	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, auth.ServiceLogin,
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.JSON(TokenResponse{
		Token:     resp.Token,
		UserID:    resp.UserID,
		Username:  resp.Username,
		Email:     resp.Email,
		PublicKey: resp.PublicKey,
		ExpiresIn: resp.ExpiresIn,
	})
}

// Me returns the authenticated account's profile (GET /api/v1/auth/me).
func (h *Handlers) Me(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	user, err := h.authPort.GetUser(c.UserContext(), cl.UserID)
	if err != nil {
		return internalError(c, "Failed to retrieve profile")
	}
	return c.JSON(profileOf(user))
}

// SearchUsers finds accounts by username or email prefix
// (GET /api/v1/users/search?q=...).
func (h *Handlers) SearchUsers(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	query := c.Query("q")
	if len(strings.TrimSpace(query)) < 2 {
		return badRequest(c, "Search query must be at least 2 characters")
	}

	req := auth.SearchUsersRequest{Query: query, RequesterID: cl.UserID}
	var resp auth.SearchUsersResponse
	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, auth.ServiceSearchUsers,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.JSON(fiber.Map{"results": resp.Results, "count": resp.Count})
}

// CheckUsername reports whether a username is free to register
// (GET /api/v1/users/check-username/:username).
func (h *Handlers) CheckUsername(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Params("username"))
	if username == "" {
		return badRequest(c, "Username is required")
	}

	req := auth.CheckUsernameRequest{Username: username}
	var resp auth.CheckUsernameResponse
	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, auth.ServiceCheckUsername,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return internalError(c, "Failed to check username")
	}

	return c.JSON(fiber.Map{"username": resp.Username, "available": resp.Available})
}

// GetUser returns one account's public profile (GET /api/v1/users/:id).
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	userID := c.Params("id")
	user, err := h.authPort.GetUser(c.UserContext(), userID)
	if err != nil {
		if strings.Contains(err.Error(), "user not found") {
			return notFound(c, "User not found")
		}
		return internalError(c, "Failed to retrieve user")
	}
	return c.JSON(profileOf(user))
}

// BatchUsers resolves several user ids in one call
// (POST /api/v1/users/batch).
func (h *Handlers) BatchUsers(c *fiber.Ctx) error {
	var req BatchUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.UserIDs) == 0 {
		return badRequest(c, "user_ids is required")
	}

	authReq := auth.GetUsersBatchRequest{UserIDs: req.UserIDs}
	var resp auth.GetUsersBatchResponse
	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, auth.ServiceGetUsersBatch,
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return internalError(c, "Failed to resolve users")
	}

	return c.JSON(fiber.Map{"users": resp.Users, "count": resp.Count})
}

// CreateRoom handles room creation (POST /api/v1/rooms).
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	isPrivate := true
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}

	view, err := h.roomPort.Create(c.UserContext(), room.CreateRoomRequest{
		Name:            req.Name,
		CreatorID:       cl.UserID,
		Description:     req.Description,
		Participants:    req.Participants,
		IsPrivate:       isPrivate,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		return h.handleRoomError(c, err)
	}

	// Seed the room's history with a creation notice. Best effort: the
	// room exists either way.
	if _, err := h.messagePort.SaveSystem(c.UserContext(), view.ID, fmt.Sprintf("%s created the room", cl.Username)); err != nil {
		h.logger.Warn("Failed to save room creation notice", "room", view.ID, "error", err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

// ListRooms returns the rooms visible to the caller (GET /api/v1/rooms).
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	views, err := h.roomPort.List(c.UserContext(), cl.UserID)
	if err != nil {
		return internalError(c, "Failed to list rooms")
	}
	return c.JSON(fiber.Map{"rooms": views, "total": len(views)})
}

// GetRoom returns one room (GET /api/v1/rooms/:id).
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	view, err := h.roomPort.Get(c.UserContext(), c.Params("id"), cl.UserID)
	if err != nil {
		return h.handleRoomError(c, err)
	}
	return c.JSON(view)
}

// AddParticipants adds users to a room
// (POST /api/v1/rooms/:id/participants).
func (h *Handlers) AddParticipants(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	var req AddParticipantsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.UserIDs) == 0 {
		return badRequest(c, "user_ids is required")
	}

	view, err := h.roomPort.AddParticipants(c.UserContext(), c.Params("id"), cl.UserID, req.UserIDs)
	if err != nil {
		return h.handleRoomError(c, err)
	}
	return c.JSON(view)
}

// RemoveParticipant removes a user from a room; "me" removes the caller
// (DELETE /api/v1/rooms/:id/participants/:userID).
func (h *Handlers) RemoveParticipant(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	target := c.Params("userID")
	if target == "me" {
		target = cl.UserID
	}

	roomID := c.Params("id")
	deleted, err := h.roomPort.RemoveParticipant(c.UserContext(), roomID, cl.UserID, target)
	if err != nil {
		return h.handleRoomError(c, err)
	}

	if !deleted && target == cl.UserID {
		if _, err := h.messagePort.SaveSystem(c.UserContext(), roomID, fmt.Sprintf("%s left the room", cl.Username)); err != nil {
			h.logger.Warn("Failed to save leave notice", "room", roomID, "error", err)
		}
	}

	return c.JSON(fiber.Map{"removed": target, "room_deleted": deleted})
}

// GetRoomHistory returns recent messages for a room
// (GET /api/v1/rooms/:id/messages). Supports conditional re-fetch: the
// response carries an ETag computed over the ordered message ids, and a
// matching If-None-Match yields 304 with no body.
func (h *Handlers) GetRoomHistory(c *fiber.Ctx) error {
	cl, ok := claims(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	roomID := c.Params("id")
	exists, allowed, err := h.roomPort.Authorize(c.UserContext(), roomID, cl.UserID)
	if err != nil {
		return internalError(c, "Failed to check room access")
	}
	if !exists {
		return notFound(c, "Room not found")
	}
	if !allowed {
		return forbidden(c, "Access denied to room")
	}

	limit := c.QueryInt("limit", message.DefaultHistoryLimit)

	// Answer conditional re-fetch from the fingerprint alone, before
	// loading the history window.
	fp, err := h.messagePort.Fingerprint(c.UserContext(), roomID, limit)
	if err != nil {
		return internalError(c, "Failed to load history")
	}
	etag := `"` + fp + `"`
	c.Set(fiber.HeaderETag, etag)
	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && strings.TrimSpace(match) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	messages, err := h.messagePort.History(c.UserContext(), roomID, limit)
	if err != nil {
		return internalError(c, "Failed to load history")
	}

	return c.JSON(fiber.Map{
		"room_id":  roomID,
		"messages": messages,
		"total":    len(messages),
	})
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "secure-chat",
	})
}

func profileOf(p *userdomain.Profile) UserResponse {
	return UserResponse{
		ID:         p.ID,
		Username:   p.Username,
		Email:      p.Email,
		PublicKey:  p.PublicKey,
		Active:     p.Active,
		LastActive: p.LastActive,
	}
}

// handleAuthError maps auth service failures to HTTP responses by known
// error messages, without exposing internals.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "invalid email or password"):
		return unauthorized(c, "Invalid email or password")
	case strings.Contains(errStr, "account temporarily locked"):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "account_locked",
			Message: "Account temporarily locked, try again later",
		})
	case strings.Contains(errStr, "account is inactive"):
		return forbidden(c, "Account is inactive")
	case strings.Contains(errStr, "user already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "An account with this email or username already exists",
		})
	case strings.Contains(errStr, "invalid email format"),
		strings.Contains(errStr, "password must be"),
		strings.Contains(errStr, "are required"),
		strings.Contains(errStr, "search query"):
		return badRequest(c, trimServiceError(errStr))
	default:
		return internalError(c, "Internal server error")
	}
}

// handleRoomError maps room service failures to HTTP responses.
func (h *Handlers) handleRoomError(c *fiber.Ctx, err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "room not found"):
		return notFound(c, "Room not found")
	case strings.Contains(errStr, "access denied"):
		return forbidden(c, "Access denied to room")
	case strings.Contains(errStr, "only the room creator"):
		return forbidden(c, "Only the room creator may do this")
	case strings.Contains(errStr, "cannot remove room creator"):
		return badRequest(c, "Cannot remove the room creator")
	case strings.Contains(errStr, "room name already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "Room name already exists",
		})
	case strings.Contains(errStr, "room name must be"),
		strings.Contains(errStr, "participant limit"),
		strings.Contains(errStr, "no participants"):
		return badRequest(c, trimServiceError(errStr))
	default:
		return internalError(c, "Internal server error")
	}
}

// trimServiceError strips transport wrapping so validation messages read
// cleanly in responses.
func trimServiceError(errStr string) string {
	if idx := strings.LastIndex(errStr, ": "); idx >= 0 {
		return errStr[idx+2:]
	}
	return errStr
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "bad_request", Message: msg})
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unauthorized", Message: msg})
}

func forbidden(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{Error: "forbidden", Message: msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not_found", Message: msg})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal_error", Message: msg})
}
