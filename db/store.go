// Package db persists saved characters and recent generation results.
package db

import (
	"context"
	"errors"
	"time"

	"charsmith/character"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a record does not exist or has expired.
var ErrNotFound = errors.New("not found")

// CharacterRecord is a saved character.
type CharacterRecord struct {
	ID        string
	Character *character.Document
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerationRecord is a completed generation or refinement, kept until
// ExpiresAt.
type GenerationRecord struct {
	ID          string
	Mode        string
	Provider    string
	Model       string
	Prompt      string
	RawResponse string
	Character   *character.Document
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Store is implemented by MongoStore and SQLiteStore.
type Store interface {
	// SaveCharacter inserts a new character and returns its ID.
	SaveCharacter(ctx context.Context, doc *character.Document) (string, error)
	// GetCharacterByName returns the most recently saved character called name.
	GetCharacterByName(ctx context.Context, name string) (*CharacterRecord, error)
	// ListCharacters returns saved characters, newest first.
	ListCharacters(ctx context.Context) ([]CharacterRecord, error)
	SaveGeneration(ctx context.Context, rec *GenerationRecord) error
	// GetGeneration returns an unexpired generation.
	GetGeneration(ctx context.Context, id string) (*GenerationRecord, error)
	Close(ctx context.Context) error
}

// Options selects and configures the backing store.
type Options struct {
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
}

// Open connects to MongoDB when MongoURI is set and opens the SQLite file
// otherwise.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if opts.MongoURI != "" {
		return ConnectMongo(ctx, opts.MongoURI, opts.MongoDatabase, logger)
	}
	if logger != nil {
		logger.Info("MONGODB_URI not set, using SQLite", zap.String("path", opts.SQLitePath))
	}
	return OpenSQLite(ctx, opts.SQLitePath)
}
