package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Embedder maps texts to vectors. Implementations return one vector per input
// text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the model version so cached vectors are never mixed across models
	Model() string
}

// CatalogRepository defines the persistence operations the indexer and the
// vector index need from the catalog store
type CatalogRepository interface {
	// ListItems returns every catalog item in ascending id order
	ListItems(ctx context.Context) ([]CatalogItem, error)
	// UpsertItems inserts or updates catalog items keyed by code
	UpsertItems(ctx context.Context, items []CatalogItem) error
	// UpsertEmbeddings inserts or updates embeddings keyed by item id as one atomic batch
	UpsertEmbeddings(ctx context.Context, records []EmbeddingRecord) error
	// ListIndexed returns every embedding joined with its catalog item, ascending by item id
	ListIndexed(ctx context.Context) ([]IndexedItem, error)
}
