package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips limiting.
type KeyFunc func(c *fiber.Ctx) string

// Middleware returns a fiber handler enforcing limiter per key. Limiter
// errors are logged and the request proceeds.
func Middleware(limiter Limiter, key KeyFunc, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		k := key(c)
		if k == "" {
			return c.Next()
		}

		result, err := limiter.Allow(c.UserContext(), k)
		if err != nil {
			logger.Warn("Rate limit check failed, allowing request", "key", k, "error", err)
			return c.Next()
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, result *Result) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func sendRateLimitExceeded(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":   "Too Many Requests",
		"message": fmt.Sprintf("Rate limit exceeded. Please retry after %d seconds.", retryAfter),
	})
}
