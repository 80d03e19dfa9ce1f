// Package repotest holds the behaviour every record repository must share.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/model"
)

// Repository mirrors repository.RecordRepository so backends can be tested
// without importing the factory.
type Repository interface {
	Create(ctx context.Context, rec *model.Record) (string, error)
	Get(ctx context.Context, id string) (*model.Record, error)
	GetFields(ctx context.Context, id string) (map[string]string, error)
	List(ctx context.Context, filter model.Filter) ([]model.Summary, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	PurgeAll(ctx context.Context) error
}

var base = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

// NewRecord builds a record created offset seconds after a fixed base time.
func NewRecord(url string, status bool, offset int) *model.Record {
	fields := map[string]string{
		model.FieldRequestArgs: "array (\n  'method' => 'GET',\n)",
		model.FieldResponse:    "array (\n)",
		model.FieldDebugTrace:  "main.main (main.go:1)",
	}
	if status {
		fields[model.FieldResponseCode] = "200"
		fields[model.FieldResponseBody] = "'ok'"
	}
	return &model.Record{
		ID:        uuid.NewString(),
		Title:     model.Title(url, status),
		Status:    status,
		URL:       url,
		CreatedAt: base.Add(time.Duration(offset) * time.Second),
		Fields:    fields,
	}
}

// Run exercises repo. newRepo must return an empty repository each call.
func Run(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("CreateAndGetFields", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := NewRecord("https://license.example.com/check", true, 0)

		id, err := repo.Create(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, id)

		fields, err := repo.GetFields(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, rec.Fields, fields)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, rec.Title, got.Title)
		assert.Equal(t, rec.URL, got.URL)
		assert.True(t, got.Status)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, rec.Fields, got.Fields)
	})

	t.Run("FailureRecordHasNoCodeOrBody", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := NewRecord("https://license.example.com", false, 0)
		_, err := repo.Create(ctx, rec)
		require.NoError(t, err)

		fields, err := repo.GetFields(ctx, rec.ID)
		require.NoError(t, err)
		assert.NotContains(t, fields, model.FieldResponseCode)
		assert.NotContains(t, fields, model.FieldResponseBody)
		assert.Len(t, fields, 3)
	})

	t.Run("StoredRecordIsIsolatedFromCaller", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := NewRecord("https://x", true, 0)
		_, err := repo.Create(ctx, rec)
		require.NoError(t, err)

		rec.Fields[model.FieldResponseBody] = "'tampered'"
		fields, err := repo.GetFields(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "'ok'", fields[model.FieldResponseBody])

		fields[model.FieldResponseBody] = "'tampered again'"
		again, err := repo.GetFields(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "'ok'", again[model.FieldResponseBody])
	})

	t.Run("DuplicateIDIsRejected", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := NewRecord("https://x", true, 0)
		_, err := repo.Create(ctx, rec)
		require.NoError(t, err)

		dup := NewRecord("https://y", false, 1)
		dup.ID = rec.ID
		_, err = repo.Create(ctx, dup)
		require.ErrorIs(t, err, model.ErrPersistence)

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://x", got.URL)
	})

	t.Run("MissingRecord", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		fields, err := repo.GetFields(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, fields)

		_, err = repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, uuid.NewString()), model.ErrNotFound)
	})

	t.Run("ListNewestFirstWithPaging", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		var ids []string
		for i := 0; i < 5; i++ {
			rec := NewRecord(fmt.Sprintf("https://x/%d", i), i%2 == 0, i)
			_, err := repo.Create(ctx, rec)
			require.NoError(t, err)
			ids = append(ids, rec.ID)
		}

		all, err := repo.List(ctx, model.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, s := range all {
			assert.Equal(t, ids[4-i], s.ID)
		}

		page, err := repo.List(ctx, model.Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[3], page[0].ID)
		assert.Equal(t, ids[2], page[1].ID)

		failed := false
		failures, err := repo.List(ctx, model.Filter{Status: &failed})
		require.NoError(t, err)
		require.Len(t, failures, 2)
		assert.Equal(t, ids[3], failures[0].ID)
		assert.Equal(t, ids[1], failures[1].ID)

		beyond, err := repo.List(ctx, model.Filter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, beyond)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 5, count)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		keep := NewRecord("https://keep", true, 0)
		drop := NewRecord("https://drop", true, 1)
		for _, rec := range []*model.Record{keep, drop} {
			_, err := repo.Create(ctx, rec)
			require.NoError(t, err)
		}

		require.NoError(t, repo.Delete(ctx, drop.ID))

		fields, err := repo.GetFields(ctx, drop.ID)
		require.NoError(t, err)
		assert.Empty(t, fields)
		_, err = repo.Get(ctx, keep.ID)
		assert.NoError(t, err)
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("PurgeAllRemovesEverythingAndIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		require.NoError(t, repo.PurgeAll(ctx))

		var ids []string
		for i := 0; i < 3; i++ {
			rec := NewRecord("https://x", i != 1, i)
			_, err := repo.Create(ctx, rec)
			require.NoError(t, err)
			ids = append(ids, rec.ID)
		}

		require.NoError(t, repo.PurgeAll(ctx))
		require.NoError(t, repo.PurgeAll(ctx))

		for _, id := range ids {
			fields, err := repo.GetFields(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, fields)
		}
		list, err := repo.List(ctx, model.Filter{})
		require.NoError(t, err)
		assert.Empty(t, list)
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ConcurrentCreatesAndPurge", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		var wg sync.WaitGroup
		created := make(chan *model.Record, 40)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := NewRecord(fmt.Sprintf("https://x/%d", i), true, i)
				if _, err := repo.Create(ctx, rec); err == nil {
					created <- rec
				}
			}(i)
			if i == 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, repo.PurgeAll(ctx))
				}()
			}
		}
		wg.Wait()
		close(created)

		// Every surviving record is complete: a create never straddles a purge.
		for rec := range created {
			fields, err := repo.GetFields(ctx, rec.ID)
			require.NoError(t, err)
			if len(fields) == 0 {
				continue
			}
			assert.Equal(t, rec.Fields, fields)
			got, err := repo.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, rec.Title, got.Title)
		}
	})
}
