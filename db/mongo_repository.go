package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"charsmith/character"
	"charsmith/db/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// SaveCharacter inserts doc and returns its ObjectID as hex.
func (s *MongoStore) SaveCharacter(ctx context.Context, doc *character.Document) (string, error) {
	data, err := toBSON(doc)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	record := models.CharacterDocument{
		Name:          doc.Name,
		ModelProvider: doc.ModelProvider,
		Data:          data,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result, err := insertWithRetry(ctx, s.collection(charactersCollection), record, s.logger)
	if err != nil {
		return "", fmt.Errorf("saving character: %w", err)
	}
	return result.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoStore) GetCharacterByName(ctx context.Context, name string) (*CharacterRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var record models.CharacterDocument
	err := s.collection(charactersCollection).FindOne(ctx, bson.M{"name": name}, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding character %q: %w", name, err)
	}
	return characterRecordFromMongo(record)
}

func (s *MongoStore) ListCharacters(ctx context.Context) ([]CharacterRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := s.collection(charactersCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.CharacterDocument
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}

	out := make([]CharacterRecord, 0, len(records))
	for _, record := range records {
		rec, err := characterRecordFromMongo(record)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *MongoStore) SaveGeneration(ctx context.Context, rec *GenerationRecord) error {
	data, err := toBSON(rec.Character)
	if err != nil {
		return err
	}
	doc := models.GenerationDocument{
		ID:          rec.ID,
		Mode:        rec.Mode,
		Provider:    rec.Provider,
		Model:       rec.Model,
		Prompt:      rec.Prompt,
		RawResponse: rec.RawResponse,
		Character:   data,
		CreatedAt:   rec.CreatedAt.UTC(),
		ExpiresAt:   rec.ExpiresAt.UTC(),
	}
	if _, err := insertWithRetry(ctx, s.collection(generationsCollection), doc, s.logger); err != nil {
		return fmt.Errorf("saving generation: %w", err)
	}
	return nil
}

// GetGeneration filters on expires_at as well, since the TTL monitor only
// runs periodically.
func (s *MongoStore) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	filter := bson.M{"_id": id, "expires_at": bson.M{"$gt": s.now().UTC()}}

	var doc models.GenerationDocument
	err := s.collection(generationsCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding generation %s: %w", id, err)
	}

	stored, err := fromBSON(doc.Character)
	if err != nil {
		return nil, err
	}
	return &GenerationRecord{
		ID:          doc.ID,
		Mode:        doc.Mode,
		Provider:    doc.Provider,
		Model:       doc.Model,
		Prompt:      doc.Prompt,
		RawResponse: doc.RawResponse,
		Character:   stored,
		CreatedAt:   doc.CreatedAt,
		ExpiresAt:   doc.ExpiresAt,
	}, nil
}

// insertWithRetry retries transient insert failures with a linear backoff.
func insertWithRetry(ctx context.Context, collection *mongo.Collection, doc any, logger *zap.Logger) (*mongo.InsertOneResult, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		result, err := collection.InsertOne(ctx, doc)
		if err == nil {
			return result, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		lastErr = err
		logger.Warn("Insert failed, retrying",
			zap.String("collection", collection.Name()),
			zap.Int("attempt", i+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond * time.Duration(i+1)):
		}
	}
	return nil, lastErr
}

func characterRecordFromMongo(record models.CharacterDocument) (*CharacterRecord, error) {
	doc, err := fromBSON(record.Data)
	if err != nil {
		return nil, err
	}
	return &CharacterRecord{
		ID:        record.ID.Hex(),
		Character: doc,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// toBSON stores the character through its JSON form so field names and
// unknown keys match the file on disk.
func toBSON(doc *character.Document) (bson.M, error) {
	if doc == nil {
		return bson.M{}, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding character: %w", err)
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(data, false, &m); err != nil {
		return nil, fmt.Errorf("converting character to bson: %w", err)
	}
	return m, nil
}

func fromBSON(m bson.M) (*character.Document, error) {
	if m == nil {
		m = bson.M{}
	}
	data, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, fmt.Errorf("converting character from bson: %w", err)
	}
	var doc character.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding character: %w", err)
	}
	return &doc, nil
}
