package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/foodscan/matcher/internal/domain"
	"github.com/foodscan/matcher/internal/infrastructure/memstore"
)

// stubEmbedder returns fixed vectors per text
type stubEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	fallback   []float32
	err        error
	failOnCall int // 1-based; 0 fails every call when err is set
	short      bool
	calls      int
	batches    [][]string
}

func newStubEmbedder(vectors map[string][]float32) *stubEmbedder {
	return &stubEmbedder{vectors: vectors}
}

func (e *stubEmbedder) Model() string { return "stub" }

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	e.batches = append(e.batches, append([]string(nil), texts...))

	if e.err != nil && (e.failOnCall == 0 || e.calls == e.failOnCall) {
		return nil, e.err
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, ok := e.vectors[text]
		if !ok {
			if e.fallback == nil {
				return nil, fmt.Errorf("no stub vector for %q", text)
			}
			v = e.fallback
		}
		out = append(out, append([]float32(nil), v...))
	}
	if e.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *stubEmbedder) batchSizes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	sizes := make([]int, len(e.batches))
	for i, b := range e.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// faultyStore wraps the in-memory store with error injection
type faultyStore struct {
	*memstore.Store

	mu               sync.Mutex
	listErr          error
	indexedErr       error
	upsertErr        error
	failUpsertOnCall int // 1-based; 0 fails every call when upsertErr is set
	upsertCalls      int
	upsertSizes      []int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memstore.New()}
}

func (s *faultyStore) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListItems(ctx)
}

func (s *faultyStore) ListIndexed(ctx context.Context) ([]domain.IndexedItem, error) {
	s.mu.Lock()
	err := s.indexedErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListIndexed(ctx)
}

func (s *faultyStore) setIndexedErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexedErr = err
}

func (s *faultyStore) UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	s.mu.Lock()
	s.upsertCalls++
	s.upsertSizes = append(s.upsertSizes, len(records))
	fail := s.upsertErr != nil && (s.failUpsertOnCall == 0 || s.upsertCalls == s.failUpsertOnCall)
	s.mu.Unlock()

	if fail {
		return s.upsertErr
	}
	return s.Store.UpsertEmbeddings(ctx, records)
}

func seedItems(store domain.CatalogRepository, names ...string) []domain.CatalogItem {
	items := make([]domain.CatalogItem, len(names))
	for i, name := range names {
		items[i] = domain.CatalogItem{Code: fmt.Sprintf("F%03d", i+1), Name: name}
	}
	if err := store.UpsertItems(context.Background(), items); err != nil {
		panic(err)
	}
	listed, err := store.ListItems(context.Background())
	if err != nil {
		panic(err)
	}
	return listed
}
