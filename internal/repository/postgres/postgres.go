package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gozcu/internal/model"
	"github.com/tuncerburak97/gozcu/internal/repository/migrations"
)

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	return &PostgresRepository{Pool: pool}, nil
}

// Create writes the record and its fields in one transaction. Field rows are
// sent as a single batch.
func (r *PostgresRepository) Create(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", fmt.Errorf("%w: record id is required", model.ErrPersistence)
	}

	err := r.Pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO api_log (id, title, status, url, created_at) VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, rec.Title, rec.Status, rec.URL, rec.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for name, value := range rec.Fields {
			batch.Queue(
				`INSERT INTO api_log_field (log_id, field_name, field_value) VALUES ($1, $2, $3)`,
				rec.ID, name, value,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("id", rec.ID).
		Int("fields", len(rec.Fields)).
		Msg("Record stored")
	return rec.ID, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*model.Record, error) {
	var rec model.Record
	err := r.Pool.QueryRow(ctx,
		`SELECT id, title, status, url, created_at FROM api_log WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Title, &rec.Status, &rec.URL, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	rec.Fields, err = r.GetFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepository) GetFields(ctx context.Context, id string) (map[string]string, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT field_name, field_value FROM api_log_field WHERE log_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get fields %s: %w", id, err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields[name] = value
	}
	return fields, rows.Err()
}

func (r *PostgresRepository) List(ctx context.Context, filter model.Filter) ([]model.Summary, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT id, title, status, url, created_at FROM api_log`)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query.WriteString(fmt.Sprintf(" WHERE status = $%d", len(args)))
	}
	args = append(args, filter.PageLimit(), filter.PageOffset())
	query.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, ctid DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)))

	rows, err := r.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []model.Summary{}
	for rows.Next() {
		var s model.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Status, &s.URL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM api_log`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM api_log WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// PurgeAll deletes every record in one statement; fields follow through the
// cascading foreign key.
func (r *PostgresRepository) PurgeAll(ctx context.Context) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM api_log`)
	if err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}
	zerolog.Ctx(ctx).Info().
		Int64("records", tag.RowsAffected()).
		Msg("Records purged")
	return nil
}

func (r *PostgresRepository) Close() error {
	r.Pool.Close()
	return nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting PostgreSQL migrations")

	_, err := r.Pool.Exec(ctx, migrations.PostgresSchema)
	if err != nil {
		log.Error().Err(err).Msg("PostgreSQL migrations failed")
		return fmt.Errorf("migration error: %v", err)
	}

	log.Info().Msg("PostgreSQL migrations completed successfully")
	return nil
}
