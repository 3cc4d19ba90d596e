package message

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	domain "github.com/keenpaul29/secure-chat/domain/message"
	"github.com/keenpaul29/secure-chat/modules/cache"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides the message store.
type Module struct {
	db            *gorm.DB
	service       *MessageService
	dbPath        string
	cacheProvider func() *cache.Cache
	historyCache  *cache.Cache
	logger        types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new message module.
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
	return "message"
}

// SetHistoryCacheProvider injects the source of the optional history
// read cache. The provider is resolved during Start, once the cache
// module has had its chance to connect; a nil provider or a provider
// returning nil disables caching.
func (m *Module) SetHistoryCacheProvider(provider func() *cache.Cache) {
	m.cacheProvider = provider
}

// Start opens the database and wires the service.
func (m *Module) Start(_ context.Context) error {
	if m.cacheProvider != nil {
		m.historyCache = m.cacheProvider()
	}
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewMessageService(NewMessageRepository(db), m.historyCache, m.logger)

	m.logger.Info("Message module started", "database", m.dbPath, "cache", m.historyCache != nil)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Message module stopped")
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
		ServiceSave: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceSave, json.Unmarshal, json.Marshal, m.handleSave)
		},
		ServiceSaveSystem: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceSaveSystem, json.Unmarshal, json.Marshal, m.handleSaveSystem)
		},
		ServiceHistory: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceHistory, json.Unmarshal, json.Marshal, m.handleHistory)
		},
		ServiceFingerprint: func() error {
			return helper.RegisterTypedRequestReplyService(
				container, ServiceFingerprint, json.Unmarshal, json.Marshal, m.handleFingerprint)
		},
	}

	for name, register := range services {
		if err := register(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", name, err)
		}
	}

	m.logger.Info("Registered message services")
	return nil
}

func (m *Module) handleSave(_ context.Context, req SaveRequest, _ *mono.Msg) (SaveResponse, error) {
	msg, err := m.service.Save(req.RoomID, req.Sender, req.Content, req.Encrypted, req.ClientTime)
	if err != nil {
		return SaveResponse{}, err
	}
	return SaveResponse{Message: *msg}, nil
}

func (m *Module) handleSaveSystem(_ context.Context, req SaveSystemRequest, _ *mono.Msg) (SaveResponse, error) {
	msg, err := m.service.SaveSystem(req.RoomID, req.Content)
	if err != nil {
		return SaveResponse{}, err
	}
	return SaveResponse{Message: *msg}, nil
}

func (m *Module) handleHistory(ctx context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	messages, err := m.service.History(ctx, req.RoomID, req.Limit)
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Messages: messages}, nil
}

func (m *Module) handleFingerprint(ctx context.Context, req FingerprintRequest, _ *mono.Msg) (FingerprintResponse, error) {
	fp, err := m.service.Fingerprint(ctx, req.RoomID, req.Limit)
	if err != nil {
		return FingerprintResponse{}, err
	}
	return FingerprintResponse{Fingerprint: fp}, nil
}
