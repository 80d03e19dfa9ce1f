package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	ora "github.com/sijms/go-ora/v2"
	"github.com/spf13/cast"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/repository/couchbase"
	"github.com/tuncerburak97/gozcu/internal/repository/memory"
	"github.com/tuncerburak97/gozcu/internal/repository/mongo"
	"github.com/tuncerburak97/gozcu/internal/repository/oracle"
	"github.com/tuncerburak97/gozcu/internal/repository/postgres"
	"github.com/tuncerburak97/gozcu/internal/repository/redis"
	"github.com/tuncerburak97/gozcu/internal/repository/sqlite"
)

const connectTimeout = 10 * time.Second

// Open builds the repository for cfg.Type and runs its migrations.
func Open(ctx context.Context, cfg *config.DBConfig) (RecordRepository, error) {
	repo, err := NewRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}
	return repo, nil
}

func NewRepository(ctx context.Context, cfg *config.DBConfig) (RecordRepository, error) {
	log.Info().
		Str("type", cfg.Type).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connecting to database")

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Type {
	case "memory":
		return memory.NewMemoryRepository(), nil

	case "sqlite", "":
		return sqlite.NewSQLiteRepository(cfg.Path)

	case "postgres":
		return postgres.NewPostgresRepository(connectCtx, PostgresURL(cfg))

	case "oracle":
		connStr := ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, nil)
		return oracle.NewOracleRepository(connStr)

	case "mongodb":
		return mongo.NewMongoRepository(connectCtx, MongoURI(cfg), cfg.Database)

	case "couchbase":
		connStr := fmt.Sprintf(
			"couchbase://%s:%d",
			cfg.Host, cfg.Port,
		)
		return couchbase.NewCouchbaseRepository(connStr, cfg.Database, cfg.User, cfg.Password)

	case "redis":
		// database carries the redis db index
		db, err := cast.ToIntE(cfg.Database)
		if err != nil && cfg.Database != "" {
			return nil, fmt.Errorf("invalid redis database %q: %v", cfg.Database, err)
		}
		addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
		return redis.NewRedisRepository(connectCtx, addr, cfg.Password, db, connectTimeout)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func PostgresURL(cfg *config.DBConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.Pool.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(cfg.Pool.MaxConns))
	}
	if cfg.Pool.MinConns > 0 {
		q.Set("pool_min_conns", strconv.Itoa(cfg.Pool.MinConns))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func MongoURI(cfg *config.DBConfig) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.Pool.MaxConns > 0 {
		u.RawQuery = url.Values{"maxPoolSize": {strconv.Itoa(cfg.Pool.MaxConns)}}.Encode()
	}
	return u.String()
}
