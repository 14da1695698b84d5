package auth

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort is the port other modules use to reach auth functionality.
type AuthPort interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	ValidateToken(ctx context.Context, token string) (domain.Principal, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Register creates a user account.
func (a *AuthAdapter) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	var resp UserResponse
	if err := call(ctx, a.container, "register", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return userFromResponse(resp), nil
}

// Login exchanges credentials for a token pair.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp TokenResponse
	if err := call(ctx, a.container, "login", &req, &resp); err != nil {
		return nil, err
	}
	return pairFromResponse(resp)
}

// Refresh exchanges a refresh token for a new token pair.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp TokenResponse
	if err := call(ctx, a.container, "refresh-token", &req, &resp); err != nil {
		return nil, err
	}
	return pairFromResponse(resp)
}

// ValidateToken validates an access token and returns its principal.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (domain.Principal, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := call(ctx, a.container, "validate-token", &req, &resp); err != nil {
		return domain.Principal{}, err
	}
	if !resp.Valid {
		if err := resp.Error.Err(); err != nil {
			return domain.Principal{}, err
		}
		return domain.Principal{}, ErrInvalidToken
	}
	return domain.Principal{ID: resp.UserID, Role: resp.Role}, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp UserResponse
	if err := call(ctx, a.container, "get-user", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return userFromResponse(resp), nil
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

func userFromResponse(resp UserResponse) *domain.User {
	return &domain.User{
		ID:        resp.ID,
		Username:  resp.Username,
		Email:     resp.Email,
		Role:      resp.Role,
		CreatedAt: resp.CreatedAt,
	}
}

func pairFromResponse(resp TokenResponse) (*domain.TokenPair, error) {
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return &domain.TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	}, nil
}
