package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached summary lives.
const DefaultTTL = 5 * time.Minute

// Module owns the Redis connection behind the summary cache.
type Module struct {
	cache     *Cache
	client    *redis.Client
	redisAddr string
	logger    types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the cache module. The client is created here so the
// cache can be handed to other modules before the application starts;
// the connection is verified in Start.
func NewModule(redisAddr, password string, ttl time.Duration, logger types.Logger) *Module {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &Module{
		cache:     New(client, "task-tracker:", ttl),
		client:    client,
		redisAddr: redisAddr,
		logger:    logger.WithModule("cache"),
	}
}

func (m *Module) Name() string {
	return "cache"
}

func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", m.redisAddr, err)
	}
	m.logger.Info("Module started", "redis", m.redisAddr, "ttl", m.cache.ttl.String())
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	stats := m.cache.GetStats()
	if err := m.client.Close(); err != nil {
		m.logger.Error("Failed to close Redis connection", "error", err)
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("Module stopped", "hits", stats.Hits, "misses", stats.Misses)
	return nil
}

func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	stats := m.cache.GetStats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"errors":   stats.Errors,
			"hit_rate": stats.HitRate,
		},
	}
}

// Cache returns the summary cache.
func (m *Module) Cache() *Cache {
	return m.cache
}
