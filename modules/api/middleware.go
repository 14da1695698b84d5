package api

import (
	"errors"
	"strings"

	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// PrincipalContextKey is the key used to store the principal in the Fiber context.
	PrincipalContextKey = "principal"

	requestIDKey = "requestid"
)

// AuthMiddleware rejects requests without a valid Bearer access token and
// attaches the token's principal to the context.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Token is required",
			})
		}

		principal, err := authPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrExpiredToken) {
				return err
			}
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(PrincipalContextKey, principal)
		return c.Next()
	}
}

// principalFrom returns the principal attached by AuthMiddleware.
func principalFrom(c *fiber.Ctx) (user.Principal, bool) {
	p, ok := c.Locals(PrincipalContextKey).(user.Principal)
	return p, ok && p.ID != ""
}

// principalKey keys the rate limiter by principal id.
func principalKey(c *fiber.Ctx) string {
	p, _ := principalFrom(c)
	return p.ID
}
