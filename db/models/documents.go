package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CharacterDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	ModelProvider string             `bson:"model_provider"`
	Data          bson.M             `bson:"data"` // the full character file
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

type GenerationDocument struct {
	ID          string    `bson:"_id"`  // uuid assigned by the generator
	Mode        string    `bson:"mode"` // "generate" or "refine"
	Provider    string    `bson:"provider"`
	Model       string    `bson:"model"`
	Prompt      string    `bson:"prompt"`
	RawResponse string    `bson:"raw_response"`
	Character   bson.M    `bson:"character"`
	CreatedAt   time.Time `bson:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}
