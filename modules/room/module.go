package room

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	domain "github.com/keenpaul29/secure-chat/domain/room"
	"github.com/keenpaul29/secure-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides the room store.
type Module struct {
	db       *gorm.DB
	service  *RoomService
	dbPath   string
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new room module.
func NewModule(moduleLogger types.Logger) *Module {
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "secure_chat.db"
	}
	return &Module{
		dbPath: dbPath,
		logger: moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "room"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
	}
}

// Start opens the database and wires the service.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Room{}, &domain.Participant{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewRoomService(NewRoomRepository(db))

	m.logger.Info("Room module started", "database", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Room module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database connection: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	services := map[string]func() error{
		ServiceCreateRoom: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.handleCreate)
		},
		ServiceGetRoom: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.handleGet)
		},
		ServiceListRooms: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceListRooms, json.Unmarshal, json.Marshal, m.handleList)
		},
		ServiceAuthorize: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceAuthorize, json.Unmarshal, json.Marshal, m.handleAuthorize)
		},
		ServiceAddParticipants: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceAddParticipants, json.Unmarshal, json.Marshal, m.handleAddParticipants)
		},
		ServiceRemoveParticipant: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceRemoveParticipant, json.Unmarshal, json.Marshal, m.handleRemoveParticipant)
		},
		ServiceTouchActivity: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceTouchActivity, json.Unmarshal, json.Marshal, m.handleTouchActivity)
		},
	}

	for name, register := range services {
		if err := register(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", name, err)
		}
	}

	m.logger.Info("Registered room services")
	return nil
}

func (m *Module) handleCreate(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	view, err := m.service.Create(ctx, req.Name, req.CreatorID, req.Description, req.Participants, req.IsPrivate, req.MaxParticipants)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	event := events.RoomCreatedEvent{
		RoomID:    view.ID,
		RoomName:  view.Name,
		CreatedBy: view.CreatorID,
		IsPrivate: view.IsPrivate,
		Timestamp: view.CreatedAt,
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomCreated event", "error", err)
	}

	return CreateRoomResponse{Room: view}, nil
}

func (m *Module) handleGet(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	view, err := m.service.Get(ctx, req.RoomID, req.UserID)
	if err != nil {
		return GetRoomResponse{}, err
	}
	return GetRoomResponse{Room: view}, nil
}

func (m *Module) handleList(ctx context.Context, req ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	views, err := m.service.List(ctx, req.UserID)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: views, Total: len(views)}, nil
}

func (m *Module) handleAuthorize(ctx context.Context, req AuthorizeRequest, _ *mono.Msg) (AuthorizeResponse, error) {
	exists, allowed, err := m.service.Authorize(ctx, req.RoomID, req.UserID)
	if err != nil {
		return AuthorizeResponse{}, err
	}
	return AuthorizeResponse{Exists: exists, Allowed: allowed}, nil
}

func (m *Module) handleAddParticipants(ctx context.Context, req AddParticipantsRequest, _ *mono.Msg) (AddParticipantsResponse, error) {
	view, err := m.service.AddParticipants(ctx, req.RoomID, req.RequesterID, req.UserIDs)
	if err != nil {
		return AddParticipantsResponse{}, err
	}
	return AddParticipantsResponse{Room: view}, nil
}

func (m *Module) handleRemoveParticipant(ctx context.Context, req RemoveParticipantRequest, _ *mono.Msg) (RemoveParticipantResponse, error) {
	deleted, err := m.service.RemoveParticipant(ctx, req.RoomID, req.RequesterID, req.UserID)
	if err != nil {
		return RemoveParticipantResponse{}, err
	}
	return RemoveParticipantResponse{RoomDeleted: deleted}, nil
}

func (m *Module) handleTouchActivity(ctx context.Context, req TouchActivityRequest, _ *mono.Msg) (TouchActivityResponse, error) {
	if err := m.service.TouchActivity(ctx, req.RoomID); err != nil {
		return TouchActivityResponse{}, err
	}
	return TouchActivityResponse{OK: true}, nil
}
