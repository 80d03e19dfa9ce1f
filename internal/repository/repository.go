package repository

import (
	"context"

	"github.com/tuncerburak97/gozcu/internal/model"
)

// RecordRepository persists captured records. Records are append-only: there is
// no update operation, only creation, reads and deletion.
type RecordRepository interface {
	// Create stores rec and returns its id. Write failures wrap model.ErrPersistence.
	Create(ctx context.Context, rec *model.Record) (string, error)
	// Get returns the full record or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Record, error)
	// GetFields returns the stored fields of id; an unknown id yields an empty map.
	GetFields(ctx context.Context, id string) (map[string]string, error)
	// List returns summaries newest first.
	List(ctx context.Context, filter model.Filter) ([]model.Summary, error)
	Count(ctx context.Context) (int64, error)
	// Delete removes one record or returns model.ErrNotFound.
	Delete(ctx context.Context, id string) error
	// PurgeAll removes every record. It is safe on an empty store.
	PurgeAll(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
