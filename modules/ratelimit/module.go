package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Defaults applied when the configured values are not positive.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// Module owns the Redis connection behind the per-principal limiter.
type Module struct {
	client    *redis.Client
	limiter   *SlidingWindowLimiter
	redisAddr string
	logger    types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the rate-limiter module. The client is created here so
// the middleware can be wired into the API before the application starts.
func NewModule(redisAddr, password string, limit int, window time.Duration, logger types.Logger) *Module {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return &Module{
		client:    client,
		limiter:   NewSlidingWindowLimiter(client, "task-tracker:ratelimit:", limit, window),
		redisAddr: redisAddr,
		logger:    logger.WithModule("rate-limiter"),
	}
}

func (m *Module) Name() string {
	return "rate-limiter"
}

func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", m.redisAddr, err)
	}
	m.logger.Info("Module started",
		"redis", m.redisAddr,
		"limit", m.limiter.limit,
		"window", m.limiter.window.String())
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		m.logger.Error("Failed to close Redis connection", "error", err)
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("Module stopped")
	return nil
}

func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"limit":  m.limiter.limit,
			"window": m.limiter.window.String(),
		},
	}
}

// Middleware returns the fiber handler limiting requests by key.
func (m *Module) Middleware(key KeyFunc) fiber.Handler {
	return Middleware(m.limiter, key, m.logger)
}
