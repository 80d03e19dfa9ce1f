package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gozcu/internal/repository/migrations"
	"github.com/tuncerburak97/gozcu/internal/repository/sqldb"
)

type SQLiteRepository struct {
	*sqldb.Repository
}

type dialect struct{}

func (dialect) Name() string { return "sqlite" }

func (dialect) Placeholder(int) string { return "?" }

func (dialect) Page(limit, offset int, next func() string) (string, []any) {
	return fmt.Sprintf("ORDER BY created_at DESC, rowid DESC LIMIT %s OFFSET %s", next(), next()),
		[]any{limit, offset}
}

// NewSQLiteRepository opens the database file at path, creating its directory
// when needed. Writes go through a single connection.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create database directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("unable to open SQLite: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to SQLite: %v", err)
	}

	return &SQLiteRepository{Repository: sqldb.New(db, dialect{})}, nil
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting SQLite migrations")

	src, err := iofs.New(migrations.SQLiteFS, migrations.SQLiteDir)
	if err != nil {
		return fmt.Errorf("migration source error: %v", err)
	}
	defer src.Close()

	driver, err := migratesqlite.WithInstance(r.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %v", err)
	}

	// m.Close would close the shared *sql.DB, so only the source is released.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migration setup error: %v", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error().Err(err).Msg("SQLite migrations failed")
		return fmt.Errorf("migration error: %v", err)
	}

	log.Info().Msg("SQLite migrations completed successfully")
	return nil
}
