package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module wraps the Redis cache used for history reads. The module is
// optional: when Redis is unreachable at startup the application runs
// without a cache.
type Module struct {
	client *redis.Client
	cache  *Cache
	config Config
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new cache module.
func NewModule(moduleLogger types.Logger) *Module {
	config := DefaultConfig()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.RedisAddr = addr
	}
	return &Module{
		config: config,
		logger: moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start connects to Redis.
func (m *Module) Start(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     m.config.RedisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		m.logger.Warn("Redis unavailable, history cache disabled",
			"addr", m.config.RedisAddr, "error", err)
		return nil
	}

	m.client = client
	m.cache = New(client, m.config.Prefix, m.config.TTL)
	m.logger.Info("Cache module started", "addr", m.config.RedisAddr, "ttl", m.config.TTL)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		m.client.Close()
	}
	m.logger.Info("Cache module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"stats": m.cache.StatsSnapshot()},
	}
}

// HistoryCache returns the cache, or nil when Redis is not available.
func (m *Module) HistoryCache() *Cache {
	return m.cache
}
