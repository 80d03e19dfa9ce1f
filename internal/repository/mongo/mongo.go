package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gozcu/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds one document per record with its fields embedded, so every
// write is a single-document operation.
const Collection = "api_logs"

type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoRepository(ctx context.Context, uri, dbName string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("unable to reach MongoDB: %v", err)
	}

	return &MongoRepository{
		client: client,
		coll:   client.Database(dbName).Collection(Collection),
	}, nil
}

func (r *MongoRepository) Create(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", fmt.Errorf("%w: record id is required", model.ErrPersistence)
	}

	doc := rec.Clone()
	doc.CreatedAt = doc.CreatedAt.UTC()
	if doc.Fields == nil {
		doc.Fields = map[string]string{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return rec.ID, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*model.Record, error) {
	var rec model.Record
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (r *MongoRepository) GetFields(ctx context.Context, id string) (map[string]string, error) {
	var doc struct {
		Fields map[string]string `bson:"fields"`
	}
	opts := options.FindOne().SetProjection(bson.M{"fields": 1})
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fields %s: %w", id, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]string{}
	}
	return doc.Fields, nil
}

func (r *MongoRepository) List(ctx context.Context, filter model.Filter) ([]model.Summary, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.PageOffset())).
		SetLimit(int64(filter.PageLimit())).
		SetProjection(bson.M{"fields": 0})

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer cur.Close(ctx)

	out := []model.Summary{}
	for cur.Next(ctx) {
		var s model.Summary
		if err := cur.Decode(&s); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, cur.Err()
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) PurgeAll(ctx context.Context) error {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("%w: purge: %v", model.ErrPersistence, err)
	}
	zerolog.Ctx(ctx).Info().
		Int64("records", res.DeletedCount).
		Msg("Records purged")
	return nil
}

func (r *MongoRepository) Close() error {
	return r.client.Disconnect(context.Background())
}

func (r *MongoRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting MongoDB migrations")

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		log.Error().Err(err).Msg("MongoDB migrations failed")
		return fmt.Errorf("index creation error: %v", err)
	}

	log.Info().Msg("MongoDB migrations completed successfully")
	return nil
}
