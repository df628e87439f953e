package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/foodscan/matcher/internal/domain"
)

// Store is a thread-safe in-memory catalog store
type Store struct {
	items      map[int64]domain.CatalogItem
	codes      map[string]int64
	embeddings map[int64]domain.EmbeddingRecord
	nextID     int64
	mutex      sync.RWMutex
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		items:      make(map[int64]domain.CatalogItem),
		codes:      make(map[string]int64),
		embeddings: make(map[int64]domain.EmbeddingRecord),
		nextID:     1,
	}
}

// ListItems returns every catalog item in ascending id order
func (s *Store) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	items := make([]domain.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// UpsertItems inserts or updates items keyed by code. New items without an id
// get the next free one.
func (s *Store) UpsertItems(ctx context.Context, items []domain.CatalogItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, item := range items {
		if item.Code == "" {
			return fmt.Errorf("item %q has no code", item.Name)
		}

		if id, ok := s.codes[item.Code]; ok {
			item.ID = id
		} else {
			if item.ID == 0 {
				item.ID = s.nextID
			}
			if _, taken := s.items[item.ID]; taken {
				return fmt.Errorf("item id %d already used by another code", item.ID)
			}
			s.codes[item.Code] = item.ID
		}
		if item.ID >= s.nextID {
			s.nextID = item.ID + 1
		}
		s.items[item.ID] = cloneItem(item)
	}
	return nil
}

// UpsertEmbeddings inserts or updates embeddings keyed by item id. The whole
// batch is applied under one lock; an unknown item id rejects the batch.
func (s *Store) UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, rec := range records {
		if _, ok := s.items[rec.ItemID]; !ok {
			return fmt.Errorf("embedding references unknown item %d", rec.ItemID)
		}
	}

	for _, rec := range records {
		stored := rec
		stored.Vector = append([]float32(nil), rec.Vector...)
		if existing, ok := s.embeddings[rec.ItemID]; ok {
			stored.CreatedAt = existing.CreatedAt
		}
		s.embeddings[rec.ItemID] = stored
	}
	return nil
}

// ListIndexed returns embeddings joined with their items, ascending by id
func (s *Store) ListIndexed(ctx context.Context) ([]domain.IndexedItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows := make([]domain.IndexedItem, 0, len(s.embeddings))
	for id, rec := range s.embeddings {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		rows = append(rows, domain.IndexedItem{
			Item:      cloneItem(item),
			Dimension: rec.Dimension,
			Vector:    append([]float32(nil), rec.Vector...),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Item.ID < rows[j].Item.ID })
	return rows, nil
}

// GetEmbedding returns the stored embedding for an item
func (s *Store) GetEmbedding(ctx context.Context, itemID int64) (*domain.EmbeddingRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.embeddings[itemID]
	if !ok {
		return nil, nil
	}
	rec.Vector = append([]float32(nil), rec.Vector...)
	return &rec, nil
}

// DeleteItem removes an item. Its embedding stays behind, as an orphan
func (s *Store) DeleteItem(ctx context.Context, itemID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if item, ok := s.items[itemID]; ok {
		delete(s.codes, item.Code)
		delete(s.items, itemID)
	}
	return nil
}

// EmbeddingCount returns the number of stored embeddings
func (s *Store) EmbeddingCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.embeddings)
}

func cloneItem(item domain.CatalogItem) domain.CatalogItem {
	if item.Nutrients != nil {
		nutrients := make(map[string]float64, len(item.Nutrients))
		for k, v := range item.Nutrients {
			nutrients[k] = v
		}
		item.Nutrients = nutrients
	}
	return item
}
