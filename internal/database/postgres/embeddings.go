package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingCache stores face embeddings in PostgreSQL using pgvector.
// It implements embedding.Cache.
type EmbeddingCache struct {
	pool *Pool
}

// NewEmbeddingCache creates a new PostgreSQL embedding cache
func NewEmbeddingCache(pool *Pool) *EmbeddingCache {
	return &EmbeddingCache{pool: pool}
}

// Get returns the cached embedding for an image hash and model version
func (c *EmbeddingCache) Get(ctx context.Context, key, version string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := c.pool.QueryRow(ctx, `
		SELECT embedding FROM embedding_cache
		WHERE image_hash = $1 AND model_version = $2
	`, key, version).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cached embedding: %w", err)
	}
	return vec.Slice(), true, nil
}

// Put stores an embedding, replacing any previous value for the same key and version
func (c *EmbeddingCache) Put(ctx context.Context, key, version string, vector []float32) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO embedding_cache (image_hash, model_version, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (image_hash, model_version)
		DO UPDATE SET embedding = EXCLUDED.embedding, created_at = NOW()
	`, key, version, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("store cached embedding: %w", err)
	}
	return nil
}

// Purge removes cached embeddings produced by any model version other than keep
func (c *EmbeddingCache) Purge(ctx context.Context, keep string) (int64, error) {
	result, err := c.pool.Exec(ctx, `DELETE FROM embedding_cache WHERE model_version <> $1`, keep)
	if err != nil {
		return 0, fmt.Errorf("purge embedding cache: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge embedding cache: %w", err)
	}
	return n, nil
}
