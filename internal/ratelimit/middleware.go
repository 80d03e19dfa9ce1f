package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Middleware limits admin API calls per client IP. Store errors let the
// request through.
func Middleware(limiter *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := limiter.Allow(c.UserContext(), "api:"+c.IP())
		if err != nil {
			log.Warn().Err(err).Str("ip", c.IP()).Msg("Rate limit store unavailable")
			return c.Next()
		}

		for header, value := range result.LimitHeaders {
			c.Set(header, value)
		}
		if result.Limited {
			return ErrRateLimitExceeded
		}
		return c.Next()
	}
}
