package couchbase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gozcu/internal/model"
	"github.com/tuncerburak97/gozcu/internal/repository/migrations"
)

const docType = "api_log"

// document is the stored shape. created_at is kept as unix nanoseconds so N1QL
// ordering is numeric.
type document struct {
	Type      string            `json:"type"`
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Status    bool              `json:"status"`
	URL       string            `json:"url"`
	CreatedAt int64             `json:"created_at"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (d document) summary() model.Summary {
	return model.Summary{
		ID:        d.ID,
		Title:     d.Title,
		Status:    d.Status,
		URL:       d.URL,
		CreatedAt: time.Unix(0, d.CreatedAt).UTC(),
	}
}

type CouchbaseRepository struct {
	Cluster *gocb.Cluster
	Bucket  *gocb.Bucket
}

func NewCouchbaseRepository(connStr, bucketName, username, password string) (*CouchbaseRepository, error) {
	cluster, err := gocb.Connect(
		connStr,
		gocb.ClusterOptions{
			Username: username,
			Password: password,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Couchbase: %v", err)
	}

	bucket := cluster.Bucket(bucketName)
	err = bucket.WaitUntilReady(5*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("bucket not ready: %v", err)
	}

	return &CouchbaseRepository{
		Cluster: cluster,
		Bucket:  bucket,
	}, nil
}

func docKey(id string) string {
	return "apilog_" + id
}

// Create inserts the whole record as one document; Insert fails when the key
// already exists.
func (r *CouchbaseRepository) Create(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", fmt.Errorf("%w: record id is required", model.ErrPersistence)
	}

	doc := document{
		Type:      docType,
		ID:        rec.ID,
		Title:     rec.Title,
		Status:    rec.Status,
		URL:       rec.URL,
		CreatedAt: rec.CreatedAt.UnixNano(),
		Fields:    rec.CopyFields(),
	}
	_, err := r.Bucket.DefaultCollection().Insert(docKey(rec.ID), doc, &gocb.InsertOptions{Context: ctx})
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return rec.ID, nil
}

func (r *CouchbaseRepository) load(ctx context.Context, id string) (*document, error) {
	res, err := r.Bucket.DefaultCollection().Get(docKey(id), &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	var doc document
	if err := res.Content(&doc); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]string{}
	}
	return &doc, nil
}

func (r *CouchbaseRepository) Get(ctx context.Context, id string) (*model.Record, error) {
	doc, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s := doc.summary()
	return &model.Record{
		ID:        s.ID,
		Title:     s.Title,
		Status:    s.Status,
		URL:       s.URL,
		CreatedAt: s.CreatedAt,
		Fields:    doc.Fields,
	}, nil
}

func (r *CouchbaseRepository) GetFields(ctx context.Context, id string) (map[string]string, error) {
	doc, err := r.load(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Fields, nil
}

func (r *CouchbaseRepository) query(ctx context.Context, statement string, params map[string]interface{}) (*gocb.QueryResult, error) {
	return r.Cluster.Query(statement, &gocb.QueryOptions{
		Context:         ctx,
		NamedParameters: params,
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
	})
}

func (r *CouchbaseRepository) List(ctx context.Context, filter model.Filter) ([]model.Summary, error) {
	params := map[string]interface{}{
		"type":   docType,
		"limit":  filter.PageLimit(),
		"offset": filter.PageOffset(),
	}
	where := "b.type = $type"
	if filter.Status != nil {
		where += " AND b.status = $status"
		params["status"] = *filter.Status
	}
	statement := fmt.Sprintf(
		"SELECT b.type, b.id, b.title, b.status, b.url, b.created_at FROM `%s` b WHERE %s ORDER BY b.created_at DESC, b.id DESC LIMIT $limit OFFSET $offset",
		r.Bucket.Name(), where,
	)

	rows, err := r.query(ctx, statement, params)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []model.Summary{}
	for rows.Next() {
		var doc document
		if err := rows.Row(&doc); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, doc.summary())
	}
	return out, rows.Err()
}

func (r *CouchbaseRepository) Count(ctx context.Context) (int64, error) {
	statement := fmt.Sprintf("SELECT COUNT(*) AS count FROM `%s` WHERE type = $type", r.Bucket.Name())
	rows, err := r.query(ctx, statement, map[string]interface{}{"type": docType})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	var row struct {
		Count int64 `json:"count"`
	}
	if err := rows.One(&row); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return row.Count, nil
}

func (r *CouchbaseRepository) Delete(ctx context.Context, id string) error {
	_, err := r.Bucket.DefaultCollection().Remove(docKey(id), &gocb.RemoveOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

func (r *CouchbaseRepository) PurgeAll(ctx context.Context) error {
	statement := fmt.Sprintf("DELETE FROM `%s` WHERE type = $type", r.Bucket.Name())
	rows, err := r.query(ctx, statement, map[string]interface{}{"type": docType})
	if err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}
	zerolog.Ctx(ctx).Info().Msg("Records purged")
	return nil
}

func (r *CouchbaseRepository) Close() error {
	return r.Cluster.Close(nil)
}

func (r *CouchbaseRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting Couchbase migrations")

	indexes := migrations.GetCouchbaseIndexes(r.Bucket.Name())
	for _, indexQuery := range indexes {
		_, err := r.Cluster.Query(indexQuery, &gocb.QueryOptions{Context: ctx})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			log.Error().Err(err).Str("query", indexQuery).Msg("Failed to create Couchbase index")
			return fmt.Errorf("index creation error: %v", err)
		}
	}

	log.Info().Msg("Couchbase migrations completed successfully")
	return nil
}
