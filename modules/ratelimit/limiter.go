// Package ratelimit limits authenticated API traffic per principal with a
// Redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// slidingWindowScript trims entries older than the window, then admits the
// request when fewer than limit entries remain. Returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		local seq = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. seq)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = oldest[2] + window_ms - now
	end
	return {0, 0, retry_after}
`)

// SlidingWindowLimiter keeps one sorted set of request timestamps per key.
type SlidingWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a limiter admitting limit requests per window.
func NewSlidingWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records the request and reports whether it is within the limit.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	redisKey := l.prefix + key

	raw, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":seq"},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("unexpected result length: %d", len(raw))
	}

	allowed, ok := raw[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for allowed: %T", raw[0])
	}
	remaining, ok := raw[1].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for remaining: %T", raw[1])
	}
	retryMs, ok := raw[2].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for retry_after: %T", raw[2])
	}

	res := &Result{
		Allowed:   allowed == 1,
		Limit:     l.limit,
		Remaining: int(remaining),
		ResetAt:   now.Add(l.window),
	}
	if !res.Allowed && retryMs > 0 {
		res.RetryAfter = time.Duration(retryMs) * time.Millisecond
		res.ResetAt = now.Add(res.RetryAfter)
	}
	return res, nil
}
