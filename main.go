package main

import (
	"context"
	"log"
	"os"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/activity"
	"github.com/example/task-tracker/modules/api"
	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/cache"
	"github.com/example/task-tracker/modules/ratelimit"
	"github.com/example/task-tracker/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Task Tracker ===")

	cfg := config.Load()

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Optional Redis-backed modules. Interfaces stay nil when disabled.
	var (
		summaryCache task.SummaryCache
		limiter      api.RateLimiter
		cacheModule  *cache.Module
		limitModule  *ratelimit.Module
	)
	if cfg.RedisEnabled() {
		cacheModule = cache.NewModule(cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL, logger)
		limitModule = ratelimit.NewModule(cfg.RedisAddr, cfg.RedisPassword, cfg.RateLimit, cfg.RateLimitWindow, logger)
		summaryCache = cacheModule.Cache()
		limiter = limitModule
	}

	// Order: independent modules first, then dependent modules
	app.Register(auth.NewModule(auth.Options{
		DBPath:  cfg.DBPath,
		DBDebug: cfg.DBDebug,
		JWT: auth.JWTConfig{
			SecretKey:            cfg.JWT.SecretKey,
			AccessTokenDuration:  cfg.JWT.AccessTTL,
			RefreshTokenDuration: cfg.JWT.RefreshTTL,
			Issuer:               cfg.JWT.Issuer,
		},
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}, logger))
	if cacheModule != nil {
		app.Register(cacheModule)
	}
	if limitModule != nil {
		app.Register(limitModule)
	}
	app.Register(activity.NewModule(activity.DefaultCapacity, logger))
	app.Register(task.NewModule(cfg.DBPath, cfg.DBDebug, summaryCache, logger))
	app.Register(api.NewModule(api.Options{
		Addr:        cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
	}, limiter, logger))

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	redis := "disabled"
	if cfg.RedisEnabled() {
		redis = cfg.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  HTTP:     %s", cfg.HTTPAddr)
	log.Printf("  Database: %s", cfg.DBPath)
	log.Printf("  Redis:    %s (summary cache, %d req/%s rate limit)", redis, cfg.RateLimit, cfg.RateLimitWindow)
	log.Println("")
	log.Println("  Public Endpoints:")
	log.Println("  POST   /api/v1/auth/register        - Register a new user")
	log.Println("  POST   /api/v1/auth/login           - Login and get tokens")
	log.Println("  POST   /api/v1/auth/refresh         - Refresh access token")
	log.Println("  GET    /health                      - Health check")
	log.Println("")
	log.Println("  Protected Endpoints (require Bearer token):")
	log.Println("  GET    /api/v1/auth/me              - Current user")
	log.Println("  GET    /api/v1/tasks                - List own tasks (page, limit, status, priority)")
	log.Println("  POST   /api/v1/tasks                - Create a task")
	log.Println("  GET    /api/v1/tasks/:id            - Get a task")
	log.Println("  PUT    /api/v1/tasks/:id            - Update a task")
	log.Println("  DELETE /api/v1/tasks/:id            - Delete a task")
	log.Println("  PATCH  /api/v1/tasks/:id/status     - Set task status")
	log.Println("  PATCH  /api/v1/tasks/:id/priority   - Set task priority")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
