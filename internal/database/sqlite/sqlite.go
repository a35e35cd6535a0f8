// Package sqlite implements the embedding cache in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-gallery/internal/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS face_cache (
	cache_key  TEXT PRIMARY KEY,
	embedding  TEXT NOT NULL,
	model      TEXT NOT NULL,
	dim        INTEGER NOT NULL,
	created_at TEXT NOT NULL
)`

// Cache is a database.EmbeddingCache backed by SQLite. Vectors are stored as JSON arrays.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(ctx context.Context, path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create face_cache table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached embedding for key, or nil if absent.
func (c *Cache) Get(ctx context.Context, key string) (*database.CachedEmbedding, error) {
	var (
		emb       database.CachedEmbedding
		raw       string
		createdAt string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT cache_key, embedding, model, dim, created_at FROM face_cache WHERE cache_key = ?`, key,
	).Scan(&emb.Key, &raw, &emb.Model, &emb.Dim, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cached embedding: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &emb.Embedding); err != nil {
		return nil, fmt.Errorf("decode cached embedding: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		emb.CreatedAt = t
	}
	return &emb, nil
}

// Put stores or replaces the embedding for key.
func (c *Cache) Put(ctx context.Context, key string, embedding []float32, model string) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO face_cache (cache_key, embedding, model, dim, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			embedding = excluded.embedding,
			model = excluded.model,
			dim = excluded.dim,
			created_at = excluded.created_at`,
		key, string(raw), model, len(embedding), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save cached embedding: %w", err)
	}
	return nil
}

// Count returns the number of cached embeddings.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM face_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached embeddings: %w", err)
	}
	return n, nil
}

// DeleteModel removes every entry computed by model.
func (c *Cache) DeleteModel(ctx context.Context, model string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM face_cache WHERE model = ?`, model)
	if err != nil {
		return 0, fmt.Errorf("delete cached embeddings: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

var _ database.EmbeddingCache = (*Cache)(nil)
