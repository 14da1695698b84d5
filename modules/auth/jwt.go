package auth

import (
	"errors"
	"time"

	domain "github.com/example/task-tracker/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	Issuer               string
}

// DefaultJWTConfig returns a default JWT configuration.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:            "task-tracker-dev-secret-change-me",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		Issuer:               "task-tracker",
	}
}

// JWTClaims represents the custom claims for JWT tokens.
type JWTClaims struct {
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

// Principal returns the identity carried by the claims.
func (c *JWTClaims) Principal() domain.Principal {
	return domain.Principal{ID: c.UserID, Role: c.Role}
}

// JWTManager issues and verifies signed credentials.
type JWTManager struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTManager creates a new JWTManager with the given configuration.
func NewJWTManager(config JWTConfig) *JWTManager {
	return &JWTManager{
		config: config,
		now:    time.Now,
	}
}

// Issue creates an access and refresh token pair for the principal.
func (m *JWTManager) Issue(p domain.Principal) (*domain.TokenPair, error) {
	accessToken, err := m.generateToken(p, tokenTypeAccess, m.config.AccessTokenDuration)
	if err != nil {
		return nil, err
	}
	refreshToken, err := m.generateToken(p, tokenTypeRefresh, m.config.RefreshTokenDuration)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    m.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}

// Verify checks an access token and returns its principal.
func (m *JWTManager) Verify(tokenString string) (domain.Principal, error) {
	claims, err := m.validate(tokenString, tokenTypeAccess)
	if err != nil {
		return domain.Principal{}, err
	}
	return claims.Principal(), nil
}

// VerifyRefresh checks a refresh token and returns its principal.
func (m *JWTManager) VerifyRefresh(tokenString string) (domain.Principal, error) {
	claims, err := m.validate(tokenString, tokenTypeRefresh)
	if err != nil {
		return domain.Principal{}, err
	}
	return claims.Principal(), nil
}

func (m *JWTManager) generateToken(p domain.Principal, tokenType string, duration time.Duration) (string, error) {
	now := m.now()
	claims := JWTClaims{
		UserID:    p.ID,
		Role:      p.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

func (m *JWTManager) validate(tokenString, tokenType string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// AccessTokenDuration returns the access token duration in seconds.
func (m *JWTManager) AccessTokenDuration() int64 {
	return int64(m.config.AccessTokenDuration.Seconds())
}
