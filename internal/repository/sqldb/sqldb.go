// Package sqldb implements the record repository on database/sql. Drivers
// differ only in placeholder syntax and paging, which a Dialect supplies.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gozcu/internal/model"
)

type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument, starting at 1.
	Placeholder(n int) string
	// Page returns the ORDER BY and paging tail of a list query. next yields
	// the following placeholder; args are returned in the order they were bound.
	Page(limit, offset int, next func() string) (string, []any)
}

type Repository struct {
	DB      *sql.DB
	Dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{DB: db, Dialect: dialect}
}

func (r *Repository) ph(n int) string {
	return r.Dialect.Placeholder(n)
}

func (r *Repository) Create(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", fmt.Errorf("%w: record id is required", model.ErrPersistence)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO api_log (id, title, status, url, created_at) VALUES (%s, %s, %s, %s, %s)`,
			r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5)),
		rec.ID, rec.Title, boolToInt(rec.Status), rec.URL, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert record: %v", model.ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO api_log_field (log_id, field_name, field_value) VALUES (%s, %s, %s)`,
			r.ph(1), r.ph(2), r.ph(3)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer stmt.Close()

	for name, value := range rec.Fields {
		if _, err := stmt.ExecContext(ctx, rec.ID, name, value); err != nil {
			return "", fmt.Errorf("%w: insert field %s: %v", model.ErrPersistence, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit: %v", model.ErrPersistence, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("id", rec.ID).
		Str("dialect", r.Dialect.Name()).
		Int("fields", len(rec.Fields)).
		Msg("Record stored")
	return rec.ID, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*model.Record, error) {
	row := r.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, title, status, url, created_at FROM api_log WHERE id = %s`, r.ph(1)),
		id,
	)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

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

func (r *Repository) GetFields(ctx context.Context, id string) (map[string]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT field_name, field_value FROM api_log_field WHERE log_id = %s`, r.ph(1)),
		id,
	)
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

func (r *Repository) List(ctx context.Context, filter model.Filter) ([]model.Summary, error) {
	var (
		query strings.Builder
		args  []any
	)
	n := 0
	next := func() string {
		n++
		return r.ph(n)
	}

	query.WriteString(`SELECT id, title, status, url, created_at FROM api_log`)
	if filter.Status != nil {
		query.WriteString(" WHERE status = " + next())
		args = append(args, boolToInt(*filter.Status))
	}
	tail, pageArgs := r.Dialect.Page(filter.PageLimit(), filter.PageOffset(), next)
	query.WriteString(" " + tail)
	args = append(args, pageArgs...)

	rows, err := r.DB.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []model.Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_log`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Delete relies on ON DELETE CASCADE to drop the fields with the record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM api_log WHERE id = %s`, r.ph(1)), id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if affected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// PurgeAll is a single statement so a concurrent create is either fully
// removed or fully kept.
func (r *Repository) PurgeAll(ctx context.Context) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM api_log`)
	if err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}
	affected, _ := res.RowsAffected()
	zerolog.Ctx(ctx).Info().
		Int64("records", affected).
		Str("dialect", r.Dialect.Name()).
		Msg("Records purged")
	return nil
}

func (r *Repository) Close() error {
	return r.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (model.Summary, error) {
	var (
		s      model.Summary
		status int64
		ts     time.Time
	)
	if err := row.Scan(&s.ID, &s.Title, &status, &s.URL, &ts); err != nil {
		return model.Summary{}, err
	}
	s.Status = status != 0
	s.CreatedAt = ts.UTC()
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
