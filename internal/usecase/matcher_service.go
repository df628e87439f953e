package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync/atomic"

	"github.com/foodscan/matcher/internal/domain"
)

// DefaultMaxLimit is the largest number of matches a single query may request
const DefaultMaxLimit = 10

// MatcherConfig holds configuration for the matcher service
type MatcherConfig struct {
	MaxLimit           int
	EnableDebugLogging bool
}

// MatcherService answers match queries against the currently published index
// snapshot. Snapshots are built off to the side and swapped in atomically, so
// a query always runs against one complete snapshot.
type MatcherService struct {
	store              domain.CatalogRepository
	embedder           domain.Embedder
	snapshot           atomic.Pointer[VectorIndex]
	maxLimit           int
	enableDebugLogging bool
}

// NewMatcherService creates a matcher service. No index is loaded until Reload
// succeeds.
func NewMatcherService(store domain.CatalogRepository, embedder domain.Embedder, config MatcherConfig) *MatcherService {
	maxLimit := config.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	return &MatcherService{
		store:              store,
		embedder:           embedder,
		maxLimit:           maxLimit,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Reload builds a fresh snapshot from the store and publishes it. On failure
// the previously published snapshot, if any, keeps serving.
func (s *MatcherService) Reload(ctx context.Context) (domain.IndexStatus, error) {
	idx, err := LoadIndex(ctx, s.store)
	if err != nil {
		log.Printf("[LOAD] Index load failed: %v", err)
		return s.Status(), err
	}

	s.snapshot.Store(idx)
	log.Printf("[LOAD] Published index snapshot: %d records, dimension %d", idx.Len(), idx.Dimension())
	return s.Status(), nil
}

// Status describes the published snapshot
func (s *MatcherService) Status() domain.IndexStatus {
	idx := s.snapshot.Load()
	if idx == nil {
		return domain.IndexStatus{}
	}
	return domain.IndexStatus{
		Ready:     true,
		Records:   idx.Len(),
		Dimension: idx.Dimension(),
		LoadedAt:  idx.LoadedAt(),
	}
}

// Match embeds queryText and returns up to limit catalog items scoring at
// least threshold, best first.
func (s *MatcherService) Match(
	ctx context.Context,
	queryText string,
	limit int,
	threshold float64,
) ([]domain.MatchResult, error) {
	query := strings.TrimSpace(queryText)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if limit < 1 || limit > s.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", domain.ErrInvalidInput, s.maxLimit, limit)
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 1, got %v", domain.ErrInvalidInput, threshold)
	}

	idx := s.snapshot.Load()
	if idx == nil {
		return nil, domain.ErrNotReady
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", domain.ErrProviderFailure, len(vectors))
	}

	vector := vectors[0]
	if len(vector) != idx.Dimension() {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d",
			domain.ErrProviderFailure, len(vector), idx.Dimension())
	}
	if !isFinite(vector) {
		return nil, fmt.Errorf("%w: query vector has non-finite components", domain.ErrProviderFailure)
	}
	if !IsUnit(vector) {
		vector = Normalize(vector)
	}

	matches, err := idx.Search(vector, limit, threshold)
	if err != nil {
		return nil, err
	}

	if s.enableDebugLogging {
		log.Printf("[MATCH] Query %q: %d matches (limit %d, threshold %.2f)", query, len(matches), limit, threshold)
		for _, m := range matches {
			log.Printf("[MATCH]   %.4f %d %q", m.Score, m.Item.ID, m.Item.Name)
		}
	}

	return matches, nil
}
