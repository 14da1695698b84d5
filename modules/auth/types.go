package auth

import (
	"errors"
	"time"

	domain "github.com/example/task-tracker/domain/user"
)

// Error codes carried in service responses. Domain failures travel in the
// payload so callers can rebuild the sentinel errors.
const (
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserExists         = "user_exists"
	CodeUserNotFound       = "user_not_found"
	CodeValidation         = "validation_error"
)

// Failure is the domain error part of a service response.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// failureFor maps a known domain error to a Failure. Unknown errors return nil.
func failureFor(err error) *Failure {
	code := ""
	switch {
	case errors.Is(err, ErrExpiredToken):
		code = CodeTokenExpired
	case errors.Is(err, ErrInvalidToken):
		code = CodeInvalidToken
	case errors.Is(err, ErrInvalidCredentials):
		code = CodeInvalidCredentials
	case errors.Is(err, ErrUserExists):
		code = CodeUserExists
	case errors.Is(err, ErrUserNotFound):
		code = CodeUserNotFound
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordTooLong):
		code = CodeValidation
	default:
		return nil
	}
	return &Failure{Code: code, Message: err.Error()}
}

// Err rebuilds the sentinel error for a failure.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	switch f.Code {
	case CodeTokenExpired:
		return ErrExpiredToken
	case CodeInvalidToken:
		return ErrInvalidToken
	case CodeInvalidCredentials:
		return ErrInvalidCredentials
	case CodeUserExists:
		return ErrUserExists
	case CodeUserNotFound:
		return ErrUserNotFound
	}
	return &ValidationFailure{Message: f.Message}
}

// ValidationFailure is a rejected registration input.
type ValidationFailure struct {
	Message string
}

func (e *ValidationFailure) Error() string { return e.Message }

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse describes a user without credentials.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	Error     *Failure    `json:"error,omitempty"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a token pair.
type TokenResponse struct {
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64    `json:"expires_in,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	Error        *Failure `json:"error,omitempty"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid  bool        `json:"valid"`
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	Error  *Failure    `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}
