package leaderboard

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEntry struct {
	RollNo      string    `bson:"roll_no"`
	Name        string    `bson:"name"`
	Percentage  float64   `bson:"percentage"`
	LastUpdated time.Time `bson:"last_updated,omitempty"`
}

type mongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func OpenMongo(ctx context.Context, cfg MongoConfig) (Store, error) {
	if cfg.Uri == "" {
		return nil, fmt.Errorf("open mongo: a uri was not specified")
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.Uri).
		SetServerSelectionTimeout(5*time.Second),
	)
	if err != nil {
		return nil, unavailable("open mongo", err)
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, unavailable("open mongo", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roll_no", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, unavailable("open mongo", err)
	}

	return mongoStore{client: client, collection: collection}, nil
}

func (s mongoStore) Upsert(ctx context.Context, entry Entry) error {
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"roll_no": entry.RollNo},
		bson.M{"$set": bson.M{
			"name":         entry.Name,
			"percentage":   entry.Percentage,
			"last_updated": entry.LastUpdated.UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (s mongoStore) Top(ctx context.Context, n int) ([]Entry, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "percentage", Value: -1}}).
		SetLimit(int64(n)).
		SetProjection(bson.M{"_id": 0, "name": 1, "percentage": 1, "roll_no": 1})

	cursor, err := s.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, unavailable("top", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoEntry
	err = cursor.All(ctx, &docs)
	if err != nil {
		return nil, unavailable("top", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, Entry{
			RollNo:     doc.RollNo,
			Name:       doc.Name,
			Percentage: doc.Percentage,
		})
	}
	return entries, nil
}

func (s mongoStore) Ping(ctx context.Context) error {
	err := s.client.Ping(ctx, nil)
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
