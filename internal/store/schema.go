package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		title VARCHAR(255),
		company VARCHAR(255),
		industry VARCHAR(100),
		leadership_level VARCHAR(100),
		location VARCHAR(255),
		bio TEXT,
		expertise TEXT[],
		interests TEXT[],
		goals TEXT[],
		avatar_url TEXT,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS questionnaire_responses (
		user_id VARCHAR(255) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		answers JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id VARCHAR(255) PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		matched_user_id VARCHAR(255) NOT NULL,
		matched_profile JSONB NOT NULL,
		match_type VARCHAR(50) NOT NULL,
		commonalities JSONB,
		conversation_starters TEXT[],
		score DOUBLE PRECISION NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		viewed BOOLEAN NOT NULL DEFAULT false,
		passed BOOLEAN NOT NULL DEFAULT false,
		superseded_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS matches_current_idx ON matches (user_id) WHERE superseded_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS matches_history_idx ON matches (user_id, generated_at)`,
	`CREATE TABLE IF NOT EXISTS profile_embeddings (
		user_id VARCHAR(255) PRIMARY KEY,
		provider VARCHAR(50) NOT NULL,
		model VARCHAR(255) NOT NULL,
		dimensions INTEGER NOT NULL,
		embedding DOUBLE PRECISION[] NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS profile_embeddings_model_idx ON profile_embeddings (provider, model)`,
}

// EnsureSchema creates the tables the stores use when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
