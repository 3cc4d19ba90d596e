package api

import (
	"context"
	"fmt"
	"os"

	"github.com/keenpaul29/secure-chat/modules/auth"
	"github.com/keenpaul29/secure-chat/modules/broker"
	"github.com/keenpaul29/secure-chat/modules/message"
	"github.com/keenpaul29/secure-chat/modules/room"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Module is the HTTP surface: REST routes for accounts, rooms and
// history plus the websocket endpoint the broker serves.
type Module struct {
	app  *fiber.App
	addr string

	authContainer mono.ServiceContainer
	authPort      auth.AuthPort
	roomPort      room.RoomPort
	messagePort   message.MessagePort
	brokerModule  *broker.Module

	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new API module. The listen address comes from
// HTTP_ADDR, defaulting to :3000.
func NewModule(moduleLogger types.Logger) *Module {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":3000"
	}
	return &Module{addr: addr, logger: moduleLogger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth", "room", "message", "broker"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authContainer = container
		m.authPort = auth.NewAdapter(container)
	case "room":
		m.roomPort = room.NewAdapter(container)
	case "message":
		m.messagePort = message.NewAdapter(container)
	}
}

// SetBrokerModule injects the broker whose websocket handler this module
// mounts. Must be called before Start.
func (m *Module) SetBrokerModule(b *broker.Module) {
	m.brokerModule = b
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.authContainer == nil || m.roomPort == nil || m.messagePort == nil {
		return fmt.Errorf("api module requires auth, room and message dependencies")
	}
	if m.brokerModule == nil {
		return fmt.Errorf("api module requires the broker module")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	m.app.Use(cors.New())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	return m.app.Shutdown()
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]interface{}{
			"addr": m.addr,
		},
	}
}

// setupRoutes configures all routes.
func (m *Module) setupRoutes() {
	handlers := NewHandlers(m.authContainer, m.authPort, m.roomPort, m.messagePort, m.logger)

	m.app.Get("/health", handlers.HealthCheck)

	wsHandler := m.brokerModule.Handler()
	m.app.Use("/ws", wsHandler.UpgradeGuard)
	m.app.Get("/ws", wsHandler.WebSocket())

	v1 := m.app.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", handlers.Register)
	authRoutes.Post("/login", handlers.Login)

	protected := v1.Group("")
	protected.Use(AuthMiddleware(m.authPort))

	protected.Get("/auth/me", handlers.Me)

	protected.Get("/users/search", handlers.SearchUsers)
	protected.Post("/users/batch", handlers.BatchUsers)
	protected.Get("/users/check-username/:username", handlers.CheckUsername)
	protected.Get("/users/:id", handlers.GetUser)

	protected.Post("/rooms", handlers.CreateRoom)
	protected.Get("/rooms", handlers.ListRooms)
	protected.Get("/rooms/:id", handlers.GetRoom)
	protected.Post("/rooms/:id/participants", handlers.AddParticipants)
	protected.Delete("/rooms/:id/participants/:userID", handlers.RemoveParticipant)
	protected.Get("/rooms/:id/messages", handlers.GetRoomHistory)
}

// errorHandler handles Fiber errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
