package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// upserter is the part of *mongo.Collection the sink uses.
type upserter interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Mongo upserts records into a collection keyed by URL.
type Mongo struct {
	client *mongo.Client
	coll   upserter
	now    func() time.Time
}

// NewMongo connects, pings and ensures a unique index on url.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(cctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create url index: %w", err)
	}
	return &Mongo{client: client, coll: coll}, nil
}

func (m *Mongo) Name() string { return "mongo" }

func (m *Mongo) Save(ctx context.Context, r Record) error {
	r, err := Normalize(r)
	if err != nil {
		return err
	}
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	update := bson.M{
		"$set": bson.M{
			"title":      r.Title,
			"source":     r.Source,
			"published":  r.Published,
			"summary":    r.Summary,
			"category":   r.Category,
			"updated_at": now().UTC(),
		},
		"$setOnInsert": bson.M{"url": r.URL},
	}
	if _, err := m.coll.UpdateOne(ctx, bson.M{"url": r.URL}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert %s: %w", r.URL, err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
