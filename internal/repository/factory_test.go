package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/repository/memory"
	"github.com/tuncerburak97/gozcu/internal/repository/sqlite"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := Open(ctx, &config.DBConfig{Type: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &memory.MemoryRepository{}, repo)
	})

	t.Run("sqlite", func(t *testing.T) {
		repo, err := Open(ctx, &config.DBConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "gozcu.db")})
		require.NoError(t, err)
		defer repo.Close()
		assert.IsType(t, &sqlite.SQLiteRepository{}, repo)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Open(ctx, &config.DBConfig{Type: "cassandra"})
		assert.EqualError(t, err, "unsupported database type: cassandra")
	})

	t.Run("redis database must be numeric", func(t *testing.T) {
		_, err := Open(ctx, &config.DBConfig{Type: "redis", Host: "localhost", Port: 6379, Database: "logs"})
		assert.ErrorContains(t, err, "invalid redis database")
	})
}

func TestPostgresURL(t *testing.T) {
	cfg := &config.DBConfig{Host: "db", Port: 5432, User: "gozcu", Password: "p@ss", Database: "logs"}
	cfg.Pool.MaxConns = 10
	cfg.Pool.MinConns = 2

	assert.Equal(t, "postgres://gozcu:p%40ss@db:5432/logs?pool_max_conns=10&pool_min_conns=2", PostgresURL(cfg))
}

func TestMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://mongo:27017", MongoURI(&config.DBConfig{Host: "mongo", Port: 27017}))

	cfg := &config.DBConfig{Host: "mongo", Port: 27017, User: "u", Password: "p"}
	cfg.Pool.MaxConns = 5
	assert.Equal(t, "mongodb://u:p@mongo:27017?maxPoolSize=5", MongoURI(cfg))
}
