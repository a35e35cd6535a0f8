package database

import "time"

// CachedEmbedding is one cached face embedding.
type CachedEmbedding struct {
	Key       string    `json:"cache_key"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}
