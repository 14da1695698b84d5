package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/database"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// Options configures the auth module.
type Options struct {
	DBPath        string
	DBDebug       bool
	JWT           JWTConfig
	BcryptCost    int
	AdminEmail    string
	AdminPassword string
}

// AuthModule provides credential and user directory services.
type AuthModule struct {
	opts    Options
	db      *gorm.DB
	service *AuthService
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*AuthModule)(nil)
	_ mono.ServiceProviderModule = (*AuthModule)(nil)
	_ mono.HealthCheckableModule = (*AuthModule)(nil)
)

// NewModule creates a new AuthModule.
func NewModule(opts Options, logger types.Logger) *AuthModule {
	if opts.DBPath == "" {
		opts.DBPath = "task_tracker.db"
	}
	if opts.JWT.SecretKey == "" {
		opts.JWT = DefaultJWTConfig()
	}
	return &AuthModule{
		opts:   opts,
		logger: logger.WithModule("auth"),
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start opens the user store and seeds the admin account when configured.
func (m *AuthModule) Start(ctx context.Context) error {
	db, err := database.Open(m.opts.DBPath, m.opts.DBDebug, &domain.User{})
	if err != nil {
		return err
	}
	m.db = db

	m.service = NewAuthService(
		NewUserRepository(db),
		NewPasswordHasher(m.opts.BcryptCost),
		NewJWTManager(m.opts.JWT),
	)

	if m.opts.AdminEmail != "" && m.opts.AdminPassword != "" {
		admin, err := m.service.EnsureAdmin(ctx, m.opts.AdminEmail, m.opts.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		m.logger.Info("Admin account ready", "user_id", admin.ID, "email", admin.Email)
	}

	m.logger.Info("Module started", "database", m.opts.DBPath)
	return nil
}

// Stop closes the user store.
func (m *AuthModule) Stop(_ context.Context) error {
	if err := database.Close(m.db); err != nil {
		m.logger.Error("Failed to close database", "error", err)
		return err
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if err := database.Ping(ctx, m.db); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.opts.DBPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "refresh-token", json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register refresh-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	m.logger.Info("Registered services",
		"services", []string{"register", "login", "refresh-token", "validate-token", "get-user"})
	return nil
}

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		if f := failureFor(err); f != nil {
			return UserResponse{Error: f}, nil
		}
		return UserResponse{}, err
	}

	m.logger.Info("User registered", "user_id", user.ID)
	return newUserResponse(user), nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (TokenResponse, error) {
	return m.tokenResponse(m.service.Login(ctx, req.Email, req.Password))
}

func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (TokenResponse, error) {
	return m.tokenResponse(m.service.RefreshTokens(ctx, req.RefreshToken))
}

func (m *AuthModule) tokenResponse(pair *domain.TokenPair, err error) (TokenResponse, error) {
	if err != nil {
		if f := failureFor(err); f != nil {
			return TokenResponse{Error: f}, nil
		}
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    pair.TokenType,
	}, nil
}

// handleValidateToken reports validation failures in the response, not as an error.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	principal, err := m.service.VerifyToken(ctx, req.Token)
	if err != nil {
		f := failureFor(err)
		if f == nil {
			f = &Failure{Code: CodeInvalidToken, Message: ErrInvalidToken.Error()}
		}
		return ValidateTokenResponse{Valid: false, Error: f}, nil
	}

	return ValidateTokenResponse{
		Valid:  true,
		UserID: principal.ID,
		Role:   principal.Role,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		if f := failureFor(err); f != nil {
			return UserResponse{Error: f}, nil
		}
		return UserResponse{}, err
	}
	return newUserResponse(user), nil
}
