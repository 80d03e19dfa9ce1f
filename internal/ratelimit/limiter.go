package ratelimit

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Result is the outcome of counting one call against a key.
type Result struct {
	Limited    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration

	// LimitHeaders are the X-RateLimit-* values for HTTP responses.
	LimitHeaders map[string]string
}

// Store keeps one fixed-window counter per key.
type Store interface {
	// Get returns the count and window end for key. An unknown or expired key
	// reports a zero count and a window end that is not in the future.
	Get(ctx context.Context, key string) (int, time.Time, error)
	// Increment counts one call. The first call of a window sets its end to resetTime.
	Increment(ctx context.Context, key string, resetTime time.Time) (int, error)
	Reset(ctx context.Context, key string) error
	Close() error
}

const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

var ErrRateLimitExceeded = fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
