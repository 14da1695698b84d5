package api

import (
	"time"

	taskdomain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/task"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse represents an authentication token response.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

func newTokenResponse(p *user.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
		TokenType:    p.TokenType,
	}
}

// UserResponse represents a user without credentials.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// StatusRequest is the body of PATCH /tasks/:id/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// PriorityRequest is the body of PATCH /tasks/:id/priority.
type PriorityRequest struct {
	Priority string `json:"priority"`
}

// TaskMessageResponse pairs a task with a human readable message.
type TaskMessageResponse struct {
	Message string         `json:"message"`
	Task    *task.TaskView `json:"task"`
}

// MessageResponse carries only a message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Errors  []taskdomain.FieldError `json:"errors,omitempty"`
}
