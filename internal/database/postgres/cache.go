package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-gallery/internal/database"
)

// CacheRepository is a database.EmbeddingCache stored in the face_cache table
type CacheRepository struct {
	pool *Pool
}

// NewCacheRepository creates a new PostgreSQL embedding cache
func NewCacheRepository(pool *Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

// Get retrieves a cached embedding, returns nil if not found
func (r *CacheRepository) Get(ctx context.Context, key string) (*database.CachedEmbedding, error) {
	query := `
		SELECT cache_key, embedding, model, dim, created_at
		FROM face_cache
		WHERE cache_key = $1
	`

	var emb database.CachedEmbedding
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, key).Scan(
		&emb.Key,
		&vec,
		&emb.Model,
		&emb.Dim,
		&emb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cached embedding: %w", err)
	}

	emb.Embedding = vec.Slice()
	return &emb, nil
}

// Put stores an embedding, replacing any previous value for key
func (r *CacheRepository) Put(ctx context.Context, key string, embedding []float32, model string) error {
	query := `
		INSERT INTO face_cache (cache_key, embedding, model, dim)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, key, pgvector.NewVector(embedding), model, len(embedding)); err != nil {
		return fmt.Errorf("save cached embedding: %w", err)
	}
	return nil
}

// Count returns the total number of cached embeddings
func (r *CacheRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached embeddings: %w", err)
	}
	return count, nil
}

// DeleteModel removes every entry computed by model and returns how many were removed
func (r *CacheRepository) DeleteModel(ctx context.Context, model string) (int64, error) {
	res, err := r.pool.Exec(ctx, "DELETE FROM face_cache WHERE model = $1", model)
	if err != nil {
		return 0, fmt.Errorf("delete cached embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Close closes the underlying pool
func (r *CacheRepository) Close() error {
	return r.pool.Close()
}

var _ database.EmbeddingCache = (*CacheRepository)(nil)
