package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gozcu/internal/model"
)

// Key layout: one hash for the record header, one for its fields and sorted
// set indexes scored by creation time in microseconds.
const (
	keyPrefix    = "apilog:"
	indexAll     = keyPrefix + "index"
	indexSuccess = keyPrefix + "index:success"
	indexFailure = keyPrefix + "index:failure"
)

func recordKey(id string) string { return keyPrefix + "record:" + id }
func fieldsKey(id string) string { return keyPrefix + "fields:" + id }

func statusIndex(status bool) string {
	if status {
		return indexSuccess
	}
	return indexFailure
}

type RedisRepository struct {
	client *goredis.Client
}

func NewRedisRepository(ctx context.Context, addr, password string, db int, timeout time.Duration) (*RedisRepository, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	return &RedisRepository{client: client}, nil
}

// Create writes the header, the fields and the index entries in one MULTI
// block, watching the header key so a duplicate id is rejected.
func (r *RedisRepository) Create(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", fmt.Errorf("%w: record id is required", model.ErrPersistence)
	}

	key := recordKey(rec.ID)
	score := float64(rec.CreatedAt.UnixMicro())
	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("duplicate record id %s", rec.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"title", rec.Title,
				"status", strconv.FormatBool(rec.Status),
				"url", rec.URL,
				"created_at", strconv.FormatInt(rec.CreatedAt.UnixNano(), 10),
			)
			if len(rec.Fields) > 0 {
				values := make(map[string]interface{}, len(rec.Fields))
				for name, value := range rec.Fields {
					values[name] = value
				}
				pipe.HSet(ctx, fieldsKey(rec.ID), values)
			}
			member := &goredis.Z{Score: score, Member: rec.ID}
			pipe.ZAdd(ctx, indexAll, member)
			pipe.ZAdd(ctx, statusIndex(rec.Status), member)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return rec.ID, nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*model.Record, error) {
	header, err := r.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	if len(header) == 0 {
		return nil, model.ErrNotFound
	}

	s := summaryFrom(id, header)
	fields, err := r.GetFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.Record{
		ID:        s.ID,
		Title:     s.Title,
		Status:    s.Status,
		URL:       s.URL,
		CreatedAt: s.CreatedAt,
		Fields:    fields,
	}, nil
}

func (r *RedisRepository) GetFields(ctx context.Context, id string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, fieldsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get fields %s: %w", id, err)
	}
	if fields == nil {
		fields = map[string]string{}
	}
	return fields, nil
}

func (r *RedisRepository) List(ctx context.Context, filter model.Filter) ([]model.Summary, error) {
	index := indexAll
	if filter.Status != nil {
		index = statusIndex(*filter.Status)
	}
	start := int64(filter.PageOffset())
	stop := start + int64(filter.PageLimit()) - 1

	ids, err := r.client.ZRevRange(ctx, index, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if len(ids) == 0 {
		return []model.Summary{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*goredis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, recordKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]model.Summary, 0, len(ids))
	for i, cmd := range cmds {
		header := cmd.Val()
		if len(header) == 0 {
			continue
		}
		out = append(out, summaryFrom(ids[i], header))
	}
	return out, nil
}

func (r *RedisRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.client.ZCard(ctx, indexAll).Result()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	var removed *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		removed = pipe.ZRem(ctx, indexAll, id)
		pipe.ZRem(ctx, indexSuccess, id)
		pipe.ZRem(ctx, indexFailure, id)
		pipe.Del(ctx, recordKey(id), fieldsKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// PurgeAll snapshots the index and removes those records in one MULTI block.
// Creates are MULTI blocks too, so each one lands wholly before or after.
func (r *RedisRepository) PurgeAll(ctx context.Context) error {
	ids, err := r.client.ZRange(ctx, indexAll, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	keys := make([]string, 0, len(ids)*2)
	for i, id := range ids {
		members[i] = id
		keys = append(keys, recordKey(id), fieldsKey(id))
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, indexAll, members...)
		pipe.ZRem(ctx, indexSuccess, members...)
		pipe.ZRem(ctx, indexFailure, members...)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}

	zerolog.Ctx(ctx).Info().
		Int("records", len(ids)).
		Msg("Records purged")
	return nil
}

func (r *RedisRepository) Migrate(ctx context.Context) error {
	return nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func summaryFrom(id string, header map[string]string) model.Summary {
	status, _ := strconv.ParseBool(header["status"])
	nanos, _ := strconv.ParseInt(header["created_at"], 10, 64)
	return model.Summary{
		ID:        id,
		Title:     header["title"],
		Status:    status,
		URL:       header["url"],
		CreatedAt: time.Unix(0, nanos).UTC(),
	}
}
