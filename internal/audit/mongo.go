package audit

import (
	"context"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore writes records to a MongoDB collection. Like SQLStore it
// connects per call and disconnects before returning.
type MongoStore struct {
	uri      string
	database string
}

func NewMongoStore(uri, database string) *MongoStore {
	return &MongoStore{uri: uri, database: database}
}

func (s *MongoStore) withCollection(ctx context.Context, fn func(*mongo.Collection) error) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()

	db := client.Database(s.database)
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: tableName}})
	if err != nil {
		return fmt.Errorf("failed to list MongoDB collections: %w", err)
	}
	if !slices.Contains(names, tableName) {
		if err := db.CreateCollection(ctx, tableName); err != nil {
			return fmt.Errorf("failed to create %s collection: %w", tableName, err)
		}
		log.WithField("collection", tableName).Info("Created audit collection in MongoDB")
	}

	return fn(db.Collection(tableName))
}

func (s *MongoStore) Record(ctx context.Context, rec Record) error {
	rec.Created = rec.Created.UTC()
	return s.withCollection(ctx, func(coll *mongo.Collection) error {
		if _, err := coll.InsertOne(ctx, rec); err != nil {
			return fmt.Errorf("failed to insert audit record: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	records := []Record{}
	err := s.withCollection(ctx, func(coll *mongo.Collection) error {
		opts := options.Find().
			SetSort(bson.D{{Key: "created", Value: -1}}).
			SetLimit(int64(limit))
		cursor, err := coll.Find(ctx, bson.D{}, opts)
		if err != nil {
			return fmt.Errorf("failed to query audit records: %w", err)
		}
		return cursor.All(ctx, &records)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
