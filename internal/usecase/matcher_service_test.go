package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/foodscan/matcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoadedMatcher stores three 2-d embeddings and publishes them
func newLoadedMatcher(t *testing.T, embedder *stubEmbedder) (*MatcherService, *faultyStore, []domain.CatalogItem) {
	t.Helper()
	ctx := context.Background()
	diag := float32(1 / math.Sqrt2)

	store := newFaultyStore()
	items := seedItems(store, "soy milk", "cola", "oat milk")
	require.NoError(t, store.UpsertEmbeddings(ctx, []domain.EmbeddingRecord{
		{ItemID: items[0].ID, Dimension: 2, Vector: []float32{1, 0}},
		{ItemID: items[1].ID, Dimension: 2, Vector: []float32{0, 1}},
		{ItemID: items[2].ID, Dimension: 2, Vector: []float32{diag, diag}},
	}))

	matcher := NewMatcherService(store, embedder, MatcherConfig{})
	_, err := matcher.Reload(ctx)
	require.NoError(t, err)
	return matcher, store, items
}

func TestMatcherService_Match(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks by similarity and applies threshold", func(t *testing.T) {
		matcher, _, items := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": {1, 0}}))

		results, err := matcher.Match(ctx, "soy milk", 2, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, items[0].ID, results[0].Item.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Equal(t, items[2].ID, results[1].Item.ID)
		assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
	})

	t.Run("normalizes the query vector", func(t *testing.T) {
		matcher, _, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": {5, 0}}))

		results, err := matcher.Match(ctx, "soy milk", 1, 0.9)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	})

	t.Run("trims the query before embedding", func(t *testing.T) {
		embedder := newStubEmbedder(map[string][]float32{"soy milk": {1, 0}})
		matcher, _, _ := newLoadedMatcher(t, embedder)

		_, err := matcher.Match(ctx, "  soy milk \n", 1, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []string{"soy milk"}, embedder.batches[len(embedder.batches)-1])
	})

	t.Run("zero query vector matches nothing above a positive threshold", func(t *testing.T) {
		matcher, _, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"?": {0, 0}}))

		results, err := matcher.Match(ctx, "?", 5, 0.1)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		embedder := newStubEmbedder(map[string][]float32{"soy milk": {1, 0}})
		matcher, _, _ := newLoadedMatcher(t, embedder)
		calls := embedder.calls

		tests := []struct {
			name      string
			query     string
			limit     int
			threshold float64
		}{
			{"empty query", "", 5, 0.4},
			{"blank query", "   \t", 5, 0.4},
			{"zero limit", "soy milk", 0, 0.4},
			{"limit above max", "soy milk", 11, 0.4},
			{"negative threshold", "soy milk", 5, -0.1},
			{"threshold above one", "soy milk", 5, 1.1},
			{"NaN threshold", "soy milk", 5, math.NaN()},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := matcher.Match(ctx, tt.query, tt.limit, tt.threshold)
				assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
			})
		}
		assert.Equal(t, calls, embedder.calls, "invalid input never reaches the provider")
	})

	t.Run("accepts boundary values", func(t *testing.T) {
		matcher, _, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": {1, 0}}))

		_, err := matcher.Match(ctx, "soy milk", 1, 0)
		assert.NoError(t, err)
		_, err = matcher.Match(ctx, "soy milk", DefaultMaxLimit, 1)
		assert.NoError(t, err)
	})

	t.Run("not ready before the first load", func(t *testing.T) {
		matcher := NewMatcherService(newFaultyStore(), newStubEmbedder(nil), MatcherConfig{})

		_, err := matcher.Match(ctx, "soy milk", 5, 0.4)
		assert.True(t, errors.Is(err, domain.ErrNotReady))

		_, err = matcher.Match(ctx, "", 5, 0.4)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("provider errors are provider failures", func(t *testing.T) {
		cause := errors.New("context deadline exceeded")
		embedder := newStubEmbedder(map[string][]float32{"soy milk": {1, 0}})
		matcher, _, _ := newLoadedMatcher(t, embedder)
		embedder.err = cause

		_, err := matcher.Match(ctx, "soy milk", 5, 0.4)
		assert.True(t, errors.Is(err, domain.ErrProviderFailure))
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("query dimension mismatch is a provider failure", func(t *testing.T) {
		matcher, _, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": {1, 0, 0}}))

		_, err := matcher.Match(ctx, "soy milk", 5, 0.4)
		assert.True(t, errors.Is(err, domain.ErrProviderFailure))
	})

	t.Run("non-finite query vectors are provider failures", func(t *testing.T) {
		nan := float32(math.NaN())
		inf := float32(math.Inf(1))
		for _, vector := range [][]float32{{nan, nan}, {1, nan}, {inf, 0}} {
			matcher, _, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": vector}))

			results, err := matcher.Match(ctx, "soy milk", 5, 0)
			assert.True(t, errors.Is(err, domain.ErrProviderFailure), "vector %v", vector)
			assert.Nil(t, results)
		}
	})

	t.Run("custom max limit", func(t *testing.T) {
		store := newFaultyStore()
		matcher := NewMatcherService(store, newStubEmbedder(nil), MatcherConfig{MaxLimit: 3})

		_, err := matcher.Match(ctx, "soy milk", 4, 0.4)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestMatcherService_Reload(t *testing.T) {
	ctx := context.Background()

	t.Run("status reflects the published snapshot", func(t *testing.T) {
		matcher := NewMatcherService(newFaultyStore(), newStubEmbedder(nil), MatcherConfig{})
		assert.False(t, matcher.Status().Ready)

		loaded, _, _ := newLoadedMatcher(t, newStubEmbedder(nil))
		status := loaded.Status()
		assert.True(t, status.Ready)
		assert.Equal(t, 3, status.Records)
		assert.Equal(t, 2, status.Dimension)
		assert.False(t, status.LoadedAt.IsZero())
	})

	t.Run("failed reload keeps serving the previous snapshot", func(t *testing.T) {
		matcher, store, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": {1, 0}}))
		store.setIndexedErr(errors.New("database is locked"))

		status, err := matcher.Reload(ctx)
		assert.True(t, errors.Is(err, domain.ErrStoreFailure))
		assert.True(t, status.Ready)
		assert.Equal(t, 3, status.Records)

		results, err := matcher.Match(ctx, "soy milk", 1, 0.5)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("failed first load stays not ready", func(t *testing.T) {
		matcher := NewMatcherService(newFaultyStore(), newStubEmbedder(nil), MatcherConfig{})

		_, err := matcher.Reload(ctx)
		assert.True(t, errors.Is(err, domain.ErrEmptyCatalog))
		assert.False(t, matcher.Status().Ready)
	})

	t.Run("reload picks up new embeddings", func(t *testing.T) {
		matcher, store, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"tea": {-1, 0}}))

		results, err := matcher.Match(ctx, "tea", 5, 0.5)
		require.NoError(t, err)
		assert.Empty(t, results)

		require.NoError(t, store.UpsertItems(ctx, []domain.CatalogItem{{Code: "T001", Name: "green tea"}}))
		items, err := store.ListItems(ctx)
		require.NoError(t, err)
		tea := items[len(items)-1]
		require.Equal(t, "green tea", tea.Name)
		require.NoError(t, store.UpsertEmbeddings(ctx, []domain.EmbeddingRecord{
			{ItemID: tea.ID, Dimension: 2, Vector: []float32{-1, 0}},
		}))

		status, err := matcher.Reload(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, status.Records)

		results, err = matcher.Match(ctx, "tea", 5, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "green tea", results[0].Item.Name)
	})
}

// TestMatcherService_ConcurrentReload runs queries while snapshots are being
// swapped; every query must see one complete snapshot
func TestMatcherService_ConcurrentReload(t *testing.T) {
	ctx := context.Background()
	matcher, _, _ := newLoadedMatcher(t, newStubEmbedder(map[string][]float32{"soy milk": {1, 0}}))

	var wg sync.WaitGroup
	errs := make(chan error, 200)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if _, err := matcher.Reload(ctx); err != nil {
					errs <- err
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				results, err := matcher.Match(ctx, "soy milk", 3, 0)
				if err != nil {
					errs <- err
					continue
				}
				if len(results) != 3 {
					errs <- errors.New("partial snapshot observed")
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
