package api

import (
	"context"
	"fmt"

	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/ratelimit"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	nanoid "github.com/jaevor/go-nanoid"
)

// RateLimiter builds the per-principal limiting middleware.
type RateLimiter interface {
	Middleware(key ratelimit.KeyFunc) fiber.Handler
}

// Options configures the HTTP server.
type Options struct {
	Addr        string
	CORSOrigins string
}

// APIModule is the HTTP API module.
type APIModule struct {
	opts     Options
	app      *fiber.App
	authPort auth.AuthPort
	taskPort task.TaskPort
	limiter  RateLimiter
	logger   types.Logger
}

var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule. limiter may be nil.
func NewModule(opts Options, limiter RateLimiter, logger types.Logger) *APIModule {
	if opts.Addr == "" {
		opts.Addr = ":3000"
	}
	return &APIModule{
		opts:    opts,
		limiter: limiter,
		logger:  logger.WithModule("api"),
	}
}

func (m *APIModule) Name() string {
	return "api"
}

func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task"}
}

func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "task":
		m.taskPort = task.NewTaskAdapter(container)
	}
}

// Start builds the Fiber app and starts listening.
func (m *APIModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskPort == nil {
		return fmt.Errorf("task dependency not set")
	}

	app, err := newApp(m.authPort, m.taskPort, m.limiter, m.opts.CORSOrigins, m.logger)
	if err != nil {
		return err
	}
	m.app = app

	go func() {
		if err := m.app.Listen(m.opts.Addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.opts.Addr, "rate_limit", m.limiter != nil)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server...")
	return m.app.ShutdownWithContext(ctx)
}

func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.opts.Addr,
		},
	}
}

// newApp assembles the middleware chain and routes.
func newApp(authPort auth.AuthPort, taskPort task.TaskPort, limiter RateLimiter, corsOrigins string, logger types.Logger) (*fiber.App, error) {
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create request id generator: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  newID,
		ContextKey: requestIDKey,
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupRoutes(app, NewHandlers(authPort, taskPort), authPort, limiter)
	return app, nil
}

func setupRoutes(app *fiber.App, h *Handlers, authPort auth.AuthPort, limiter RateLimiter) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"module": "api",
		})
	})

	v1 := app.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/refresh", h.Refresh)

	protected := []fiber.Handler{AuthMiddleware(authPort)}
	if limiter != nil {
		protected = append(protected, limiter.Middleware(principalKey))
	}

	authRoutes.Get("/me", append(protected, h.Me)...)

	tasks := v1.Group("/tasks", protected...)
	tasks.Get("/", h.ListTasks)
	tasks.Post("/", h.CreateTask)
	tasks.Get("/:id", h.GetTask)
	tasks.Put("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)
	tasks.Patch("/:id/status", h.UpdateStatus)
	tasks.Patch("/:id/priority", h.UpdatePriority)
}
