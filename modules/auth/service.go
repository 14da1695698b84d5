package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	domain "github.com/example/task-tracker/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidUsername is returned when the username is empty or too long.
	ErrInvalidUsername = errors.New("username must be between 1 and 64 characters")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

const maxUsernameLength = 64

// AuthService handles authentication business logic.
type AuthService struct {
	repo   *UserRepository
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
	}
}

// Register creates a new user account with the user role.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	return s.createUser(ctx, username, email, password, domain.RoleUser)
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, ErrInvalidUsername
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	// bcrypt has a 72-byte limit
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// RefreshTokens exchanges a refresh token for a new pair. The role is
// re-read from the user record so role changes apply on refresh.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	principal, err := s.jwt.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.issue(user)
}

// VerifyToken validates an access token and returns its principal.
// It never touches the user store.
func (s *AuthService) VerifyToken(_ context.Context, token string) (domain.Principal, error) {
	return s.jwt.Verify(token)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// EnsureAdmin creates the admin account, or promotes the existing account
// registered under email.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	existing, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			if err := s.repo.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
				return nil, fmt.Errorf("failed to promote admin: %w", err)
			}
			existing.Role = domain.RoleAdmin
		}
		return existing, nil
	case errors.Is(err, ErrUserNotFound):
		return s.createUser(ctx, "admin", email, password, domain.RoleAdmin)
	default:
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
}

func (s *AuthService) issue(user *domain.User) (*domain.TokenPair, error) {
	pair, err := s.jwt.Issue(domain.Principal{ID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return pair, nil
}
