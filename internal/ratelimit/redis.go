package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/config"
)

const throttleKeyPrefix = "gozcu:throttle:"

// incrWindow counts a call and arms the window expiry on the first call, in
// one round trip so a crash between the two cannot leave an immortal counter.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisStore shares windows between every gozcu process using the same redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to cfg and verifies the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to throttle redis %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Int("db", cfg.DB).Msg("Throttle store connected")
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient uses an existing client. Close closes it.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, error) {
	var (
		count *redis.StringCmd
		ttl   *redis.DurationCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Get(ctx, throttleKeyPrefix+key)
		ttl = pipe.PTTL(ctx, throttleKeyPrefix+key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, err
	}

	now := time.Now()
	n, err := count.Int()
	if err != nil || ttl.Val() <= 0 {
		return 0, now, nil
	}
	return n, now.Add(ttl.Val()), nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, error) {
	window := time.Until(resetTime).Milliseconds()
	if window < 1 {
		window = 1
	}
	n, err := incrWindow.Run(ctx, s.client, []string{throttleKeyPrefix + key}, window).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, throttleKeyPrefix+key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
