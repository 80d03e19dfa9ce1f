package ratelimit

import (
	"context"
	"strconv"
	"time"
)

// Service applies a fixed window limit of requests per window to any key.
type Service struct {
	requests int
	window   time.Duration
	store    Store
	now      func() time.Time
}

// NewService creates a new rate limiter service
func NewService(requests int, window time.Duration, store Store) *Service {
	if window <= 0 {
		window = time.Minute
	}
	return &Service{
		requests: requests,
		window:   window,
		store:    store,
		now:      time.Now,
	}
}

// Allow counts one call against key. Store failures are returned together
// with an unlimited result so callers can fail open.
func (s *Service) Allow(ctx context.Context, key string) (*Result, error) {
	if s.requests <= 0 {
		return &Result{Limited: false}, nil
	}
	return s.checkLimit(ctx, key)
}

// Reset clears the window of key.
func (s *Service) Reset(ctx context.Context, key string) error {
	return s.store.Reset(ctx, key)
}

func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) checkLimit(ctx context.Context, key string) (*Result, error) {
	open := &Result{Limited: false, Remaining: s.requests}

	count, resetTime, err := s.store.Get(ctx, key)
	if err != nil {
		return open, err
	}

	now := s.now()
	if !resetTime.After(now) {
		resetTime = now.Add(s.window)
		count = 0
	}

	if count >= s.requests {
		retryAfter := resetTime.Sub(now)
		return &Result{
			Limited:    true,
			Remaining:  0,
			ResetTime:  resetTime,
			RetryAfter: retryAfter,
			LimitHeaders: map[string]string{
				HeaderRateLimit:     strconv.Itoa(s.requests),
				HeaderRateRemaining: "0",
				HeaderRateReset:     strconv.FormatInt(resetTime.Unix(), 10),
				HeaderRetryAfter:    strconv.FormatInt(int64(retryAfter.Seconds()), 10),
			},
		}, nil
	}

	newCount, err := s.store.Increment(ctx, key, resetTime)
	if err != nil {
		return open, err
	}

	remaining := s.requests - newCount
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Limited:   false,
		Remaining: remaining,
		ResetTime: resetTime,
		LimitHeaders: map[string]string{
			HeaderRateLimit:     strconv.Itoa(s.requests),
			HeaderRateRemaining: strconv.Itoa(remaining),
			HeaderRateReset:     strconv.FormatInt(resetTime.Unix(), 10),
		},
	}, nil
}
