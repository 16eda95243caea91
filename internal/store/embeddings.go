package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ProfileVector is a stored profile embedding. Vectors from different
// provider/model pairs are never compared.
type ProfileVector struct {
	UserID    string
	Provider  string
	Model     string
	Values    []float32
	UpdatedAt time.Time
}

type EmbeddingStore struct {
	db *sql.DB
}

func NewEmbeddingStore(db *sql.DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// Upsert writes vectors in one transaction, replacing any previous vector
// for the same user.
func (s *EmbeddingStore) Upsert(ctx context.Context, vectors []ProfileVector) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert embeddings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range vectors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profile_embeddings (user_id, provider, model, dimensions, embedding, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO UPDATE
			SET provider = EXCLUDED.provider, model = EXCLUDED.model,
			    dimensions = EXCLUDED.dimensions, embedding = EXCLUDED.embedding,
			    updated_at = EXCLUDED.updated_at`,
			v.UserID, v.Provider, v.Model, len(v.Values), toFloat64Array(v.Values), v.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert embedding %s: %w", v.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings: %w", err)
	}
	return nil
}

// Get returns ErrNotFound when the user has no vector.
func (s *EmbeddingStore) Get(ctx context.Context, userID string) (*ProfileVector, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, provider, model, embedding, updated_at
		FROM profile_embeddings
		WHERE user_id = $1`, userID)

	v, err := scanVector(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load embedding %s: %w", userID, err)
	}
	return v, nil
}

// ListComparable returns every vector produced by the same provider and
// model, except excludeUserID's.
func (s *EmbeddingStore) ListComparable(ctx context.Context, provider, model, excludeUserID string) ([]ProfileVector, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, provider, model, embedding, updated_at
		FROM profile_embeddings
		WHERE provider = $1 AND model = $2 AND user_id <> $3`, provider, model, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []ProfileVector
	for rows.Next() {
		v, err := scanVector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanVector(row rowScanner) (*ProfileVector, error) {
	var (
		v      ProfileVector
		values pq.Float64Array
	)
	if err := row.Scan(&v.UserID, &v.Provider, &v.Model, &values, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Values = toFloat32(values)
	return &v, nil
}

func toFloat64Array(in []float32) pq.Float64Array {
	out := make(pq.Float64Array, len(in))
	for i, f := range in {
		out[i] = float64(f)
	}
	return out
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}
