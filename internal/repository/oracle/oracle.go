package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "github.com/sijms/go-ora/v2"
	"github.com/tuncerburak97/gozcu/internal/repository/migrations"
	"github.com/tuncerburak97/gozcu/internal/repository/sqldb"
)

type OracleRepository struct {
	*sqldb.Repository
}

type dialect struct{}

func (dialect) Name() string { return "oracle" }

func (dialect) Placeholder(n int) string { return fmt.Sprintf(":%d", n) }

func (dialect) Page(limit, offset int, next func() string) (string, []any) {
	return fmt.Sprintf("ORDER BY created_at DESC, id DESC OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", next(), next()),
		[]any{offset, limit}
}

func NewOracleRepository(connStr string) (*OracleRepository, error) {
	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Oracle: %v", err)
	}

	return &OracleRepository{Repository: sqldb.New(db, dialect{})}, nil
}

// Migrate runs each statement on its own; Oracle rejects batches through
// database/sql and has no IF NOT EXISTS.
func (r *OracleRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting Oracle migrations")

	for _, stmt := range migrations.OracleSchema {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			if alreadyExists(err) {
				continue
			}
			log.Error().Err(err).Msg("Oracle migrations failed")
			return fmt.Errorf("migration error: %v", err)
		}
	}

	log.Info().Msg("Oracle migrations completed successfully")
	return nil
}

func alreadyExists(err error) bool {
	for _, code := range migrations.OracleExistsCodes {
		if strings.Contains(err.Error(), code) {
			return true
		}
	}
	return false
}
