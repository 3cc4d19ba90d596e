package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	domain "github.com/keenpaul29/secure-chat/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides the credential store and token issuer.
type Module struct {
	db      *gorm.DB
	service *AuthService
	dbPath  string
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new auth module.
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
	return "auth"
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

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repo := NewUserRepository(db)
	hasher := NewPasswordHasher()
	jwtManager := NewJWTManager(loadJWTConfig())

	m.service = NewAuthService(repo, hasher, jwtManager)

	m.logger.Info("Auth module started", "database", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Auth module stopped")
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
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dbPath},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRegister, json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRegister, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogin, json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLogin, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceValidateToken, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSearchUsers, json.Unmarshal, json.Marshal, m.handleSearchUsers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSearchUsers, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUsersBatch, json.Unmarshal, json.Marshal, m.handleGetUsersBatch,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUsersBatch, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCheckUsername, json.Unmarshal, json.Marshal, m.handleCheckUsername,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCheckUsername, err)
	}

	m.logger.Info("Registered auth services",
		"services", []string{
			ServiceRegister, ServiceLogin, ServiceValidateToken,
			ServiceGetUser, ServiceSearchUsers, ServiceGetUsersBatch,
			ServiceCheckUsername,
		})
	return nil
}

func (m *Module) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	user, token, err := m.service.Register(ctx, req.Username, req.Email, req.Password, req.PublicKey)
	if err != nil {
		return RegisterResponse{}, err
	}
	return RegisterResponse{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		PublicKey: user.PublicKey,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *Module) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	user, token, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		PublicKey: user.PublicKey,
		ExpiresIn: m.service.jwt.TokenDuration(),
	}, nil
}

func (m *Module) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		errMsg := "invalid token"
		switch {
		case errors.Is(err, ErrExpiredToken):
			errMsg = "token expired"
		case errors.Is(err, ErrAccountInactive):
			errMsg = "account is inactive"
		}
		// Validation failures are a response, not a transport error.
		return ValidateTokenResponse{Valid: false, Error: errMsg}, nil
	}
	return ValidateTokenResponse{
		Valid:    true,
		UserID:   claims.UserID,
		Username: claims.Username,
	}, nil
}

func (m *Module) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return GetUserResponse{}, err
	}
	return toUserResponse(user.PublicProfile()), nil
}

func (m *Module) handleSearchUsers(ctx context.Context, req SearchUsersRequest, _ *mono.Msg) (SearchUsersResponse, error) {
	profiles, err := m.service.SearchUsers(ctx, req.Query, req.RequesterID)
	if err != nil {
		return SearchUsersResponse{}, err
	}
	results := make([]GetUserResponse, 0, len(profiles))
	for _, p := range profiles {
		results = append(results, toUserResponse(p))
	}
	return SearchUsersResponse{Results: results, Count: len(results)}, nil
}

func (m *Module) handleGetUsersBatch(ctx context.Context, req GetUsersBatchRequest, _ *mono.Msg) (GetUsersBatchResponse, error) {
	if len(req.UserIDs) == 0 || len(req.UserIDs) > 100 {
		return GetUsersBatchResponse{}, errors.New("user_ids must contain between 1 and 100 entries")
	}
	profiles, err := m.service.GetUsersBatch(ctx, req.UserIDs)
	if err != nil {
		return GetUsersBatchResponse{}, err
	}
	users := make([]GetUserResponse, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, toUserResponse(p))
	}
	return GetUsersBatchResponse{Users: users, Count: len(users)}, nil
}

func (m *Module) handleCheckUsername(ctx context.Context, req CheckUsernameRequest, _ *mono.Msg) (CheckUsernameResponse, error) {
	available, err := m.service.CheckUsername(ctx, req.Username)
	if err != nil {
		return CheckUsernameResponse{}, err
	}
	return CheckUsernameResponse{Username: req.Username, Available: available}, nil
}

func toUserResponse(p domain.Profile) GetUserResponse {
	return GetUserResponse{
		ID:         p.ID,
		Username:   p.Username,
		Email:      p.Email,
		PublicKey:  p.PublicKey,
		Active:     p.Active,
		LastActive: p.LastActive,
	}
}

// loadJWTConfig loads JWT configuration from environment variables.
func loadJWTConfig() JWTConfig {
	config := DefaultJWTConfig()
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.SecretKey = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Issuer = issuer
	}
	return config
}
