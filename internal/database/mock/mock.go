// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-gallery/internal/database"
)

// MockEmbeddingCache is an in-memory database.EmbeddingCache
type MockEmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string]*database.CachedEmbedding

	GetCalls int
	PutCalls int

	// Error injection
	GetError    error
	PutError    error
	CountError  error
	DeleteError error
}

// NewMockEmbeddingCache creates an empty mock cache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{
		entries: make(map[string]*database.CachedEmbedding),
	}
}

// Get returns a copy of the cached entry or nil
func (m *MockEmbeddingCache) Get(ctx context.Context, key string) (*database.CachedEmbedding, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	cp.Embedding = append([]float32(nil), e.Embedding...)
	return &cp, nil
}

// Put stores the embedding under key
func (m *MockEmbeddingCache) Put(ctx context.Context, key string, embedding []float32, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++

	if m.PutError != nil {
		return m.PutError
	}
	m.entries[key] = &database.CachedEmbedding{
		Key:       key,
		Embedding: append([]float32(nil), embedding...),
		Model:     model,
		Dim:       len(embedding),
		CreatedAt: time.Now(),
	}
	return nil
}

// Count returns the number of entries
func (m *MockEmbeddingCache) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// DeleteModel removes the entries of model
func (m *MockEmbeddingCache) DeleteModel(ctx context.Context, model string) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, e := range m.entries {
		if e.Model == model {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

// Close is a no-op
func (m *MockEmbeddingCache) Close() error {
	return nil
}

var _ database.EmbeddingCache = (*MockEmbeddingCache)(nil)
