package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"charsmith/character"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS characters (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		model_provider TEXT NOT NULL DEFAULT '',
		data           TEXT NOT NULL,
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_characters_name ON characters(name, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS generations (
		id           TEXT PRIMARY KEY,
		mode         TEXT NOT NULL,
		provider     TEXT NOT NULL DEFAULT '',
		model        TEXT NOT NULL DEFAULT '',
		prompt       TEXT NOT NULL DEFAULT '',
		raw_response TEXT NOT NULL DEFAULT '',
		character    TEXT NOT NULL,
		created_at   INTEGER NOT NULL,
		expires_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_generations_expires ON generations(expires_at)`,
}

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and creates) the database at path. Pass ":memory:" for
// an in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every pooled connection to :memory: would be a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveCharacter(ctx context.Context, doc *character.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding character: %w", err)
	}
	id := uuid.NewString()
	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO characters (id, name, model_provider, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, doc.Name, doc.ModelProvider, string(data), now, now)
	if err != nil {
		return "", fmt.Errorf("saving character: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetCharacterByName(ctx context.Context, name string) (*CharacterRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM characters WHERE name = ? ORDER BY updated_at DESC, rowid DESC LIMIT 1`,
		name)
	rec, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding character %q: %w", name, err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListCharacters(ctx context.Context) ([]CharacterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM characters ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	out := []CharacterRecord{}
	for rows.Next() {
		rec, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("listing characters: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// SaveGeneration also purges expired generations.
func (s *SQLiteStore) SaveGeneration(ctx context.Context, rec *GenerationRecord) error {
	data, err := json.Marshal(rec.Character)
	if err != nil {
		return fmt.Errorf("encoding character: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving generation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE expires_at <= ?`, s.now().UnixNano()); err != nil {
		return fmt.Errorf("purging generations: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO generations (id, mode, provider, model, prompt, raw_response, character, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Mode, rec.Provider, rec.Model, rec.Prompt, rec.RawResponse, string(data),
		rec.CreatedAt.UnixNano(), rec.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving generation: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	var (
		rec                  GenerationRecord
		data                 string
		createdAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mode, provider, model, prompt, raw_response, character, created_at, expires_at
		 FROM generations WHERE id = ? AND expires_at > ?`,
		id, s.now().UnixNano()).
		Scan(&rec.ID, &rec.Mode, &rec.Provider, &rec.Model, &rec.Prompt, &rec.RawResponse, &data, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding generation %s: %w", id, err)
	}

	var doc character.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding character: %w", err)
	}
	rec.Character = &doc
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row scanner) (*CharacterRecord, error) {
	var (
		rec                  CharacterRecord
		data                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var doc character.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding character %s: %w", rec.ID, err)
	}
	rec.Character = &doc
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &rec, nil
}
