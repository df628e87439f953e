package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/foodscan/matcher/internal/domain"
)

// Indexer defaults
const (
	DefaultEmbedBatchSize = 128
	DefaultWriteChunkSize = 1000
)

// IndexerConfig holds configuration for the indexer
type IndexerConfig struct {
	BatchSize      int
	WriteChunkSize int
	ServingLabel   string
}

// Indexer embeds the catalog and upserts the resulting vectors into the store
type Indexer struct {
	store          domain.CatalogRepository
	embedder       domain.Embedder
	text           *TextBuilder
	batchSize      int
	writeChunkSize int
	now            func() time.Time
}

// NewIndexer creates a new indexer with dependencies
func NewIndexer(store domain.CatalogRepository, embedder domain.Embedder, config IndexerConfig) *Indexer {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	writeChunkSize := config.WriteChunkSize
	if writeChunkSize <= 0 {
		writeChunkSize = DefaultWriteChunkSize
	}

	return &Indexer{
		store:          store,
		embedder:       embedder,
		text:           NewTextBuilder(config.ServingLabel),
		batchSize:      batchSize,
		writeChunkSize: writeChunkSize,
		now:            time.Now,
	}
}

// Reindex embeds every catalog item in the store and returns the number of
// embeddings written.
func (ix *Indexer) Reindex(ctx context.Context) (int, error) {
	items, err := ix.store.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: listing catalog: %w", domain.ErrStoreFailure, err)
	}
	return ix.ReindexItems(ctx, items)
}

// ReindexItems embeds the given items in batches and upserts the vectors in
// write chunks. Any failure aborts the run; chunks flushed before the failure
// stay in the store.
func (ix *Indexer) ReindexItems(ctx context.Context, items []domain.CatalogItem) (int, error) {
	if len(items) == 0 {
		log.Printf("[INDEX] Catalog is empty, nothing to embed")
		return 0, nil
	}

	totalBatches := (len(items) + ix.batchSize - 1) / ix.batchSize
	log.Printf("[INDEX] Embedding %d items in %d batches (model: %s)", len(items), totalBatches, ix.embedder.Model())

	written := 0
	dimension := 0
	pending := make([]domain.EmbeddingRecord, 0, ix.writeChunkSize+ix.batchSize)

	for start := 0; start < len(items); start += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
		}

		end := min(start+ix.batchSize, len(items))
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i, item := range batch {
			texts[i] = ix.text.Build(item)
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("%w: batch %d-%d: %w", domain.ErrProviderFailure, start, end, err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("%w: batch %d-%d: got %d vectors for %d texts",
				domain.ErrProviderFailure, start, end, len(vectors), len(batch))
		}

		now := ix.now()
		for i, vector := range vectors {
			if dimension == 0 {
				dimension = len(vector)
			}
			if len(vector) == 0 || len(vector) != dimension {
				return written, fmt.Errorf("%w: item %d: vector dimension %d, expected %d",
					domain.ErrProviderFailure, batch[i].ID, len(vector), dimension)
			}

			pending = append(pending, domain.EmbeddingRecord{
				ItemID:    batch[i].ID,
				Dimension: len(vector),
				Vector:    Normalize(vector),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		log.Printf("[INDEX] Batch %d/%d embedded (%d items)", start/ix.batchSize+1, totalBatches, len(batch))

		if len(pending) >= ix.writeChunkSize {
			if err := ix.flush(ctx, pending); err != nil {
				return written, err
			}
			written += len(pending)
			pending = make([]domain.EmbeddingRecord, 0, ix.writeChunkSize+ix.batchSize)
		}
	}

	if len(pending) > 0 {
		if err := ix.flush(ctx, pending); err != nil {
			return written, err
		}
		written += len(pending)
	}

	log.Printf("[INDEX] Wrote %d embeddings (dimension %d)", written, dimension)
	return written, nil
}

// flush writes one chunk of records as a single upsert batch
func (ix *Indexer) flush(ctx context.Context, records []domain.EmbeddingRecord) error {
	if err := ix.store.UpsertEmbeddings(ctx, records); err != nil {
		return fmt.Errorf("%w: upserting %d embeddings: %w", domain.ErrStoreFailure, len(records), err)
	}
	return nil
}
