package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// EmbeddingCache stores embedding-service output keyed by image content and model.
// Only raw per-image embeddings are cached; gallery representatives never are.
type EmbeddingCache interface {
	// Get returns the cached embedding for key, or nil if absent.
	Get(ctx context.Context, key string) (*CachedEmbedding, error)
	// Put stores or replaces the embedding for key.
	Put(ctx context.Context, key string, embedding []float32, model string) error
	// Count returns the number of cached embeddings.
	Count(ctx context.Context) (int, error)
	// DeleteModel removes every entry computed by model and returns how many were removed.
	DeleteModel(ctx context.Context, model string) (int64, error)
	// Close releases the backend.
	Close() error
}

// CacheKey builds the cache key of an image for a model: "<sha256 hex>:<model>".
func CacheKey(imageData []byte, model string) string {
	sum := sha256.Sum256(imageData)
	return hex.EncodeToString(sum[:]) + ":" + model
}
