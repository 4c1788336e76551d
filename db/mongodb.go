package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	charactersCollection  = "characters"
	generationsCollection = "generations"
)

// MongoStore is a Store backed by MongoDB.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
	now      func() time.Time
}

// ConnectMongo connects to uri, verifies the connection and ensures the
// collection indexes exist.
func ConnectMongo(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &MongoStore{
		client:   client,
		database: client.Database(database),
		logger:   logger,
		now:      time.Now,
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Connected to MongoDB", zap.String("database", database))
	return s, nil
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.database.Collection(name)
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	characterIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	}
	if _, err := s.collection(charactersCollection).Indexes().CreateMany(ctx, characterIndexes); err != nil {
		return fmt.Errorf("creating character indexes: %w", err)
	}

	// The TTL monitor removes generations once expires_at has passed.
	generationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	if _, err := s.collection(generationsCollection).Indexes().CreateMany(ctx, generationIndexes); err != nil {
		return fmt.Errorf("creating generation indexes: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
