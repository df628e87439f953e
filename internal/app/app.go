package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/foodscan/matcher/config"
	"github.com/foodscan/matcher/internal/domain"
	"github.com/foodscan/matcher/internal/infrastructure/cache"
	"github.com/foodscan/matcher/internal/infrastructure/embedding"
	"github.com/foodscan/matcher/internal/infrastructure/sqlite"
	"github.com/foodscan/matcher/internal/usecase"
)

// App wires the store, embedding provider and use cases from configuration.
// The indexer embeds with the raw provider; only query embeddings go
// through the cache.
type App struct {
	Config  *config.Config
	DB      *sqlite.DB
	Store   *sqlite.CatalogStore
	Indexer *usecase.Indexer
	Matcher *usecase.MatcherService

	closers []func() error
}

// New builds the application. It does not load the index; call
// Matcher.Reload for that.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		DB:      db,
		Store:   sqlite.NewCatalogStore(db),
		closers: []func() error{db.Close},
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	queryEmbedder, err := a.withCache(ctx, embedder)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Indexer = usecase.NewIndexer(a.Store, embedder, usecase.IndexerConfig{
		BatchSize:      cfg.Embedding.BatchSize,
		WriteChunkSize: cfg.Store.WriteChunkSize,
		ServingLabel:   cfg.Matching.ServingLabel,
	})
	a.Matcher = usecase.NewMatcherService(a.Store, queryEmbedder, usecase.MatcherConfig{
		MaxLimit:           cfg.Matching.MaxLimit,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})

	return a, nil
}

// OpenStore opens the SQLite catalog database named in cfg
func OpenStore(cfg *config.Config) (*sqlite.DB, error) {
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	return db, nil
}

// NewEmbedder creates the configured embedding provider
func NewEmbedder(cfg *config.Config) (domain.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:            cfg.Embedding.APIKey,
			BaseURL:           cfg.Embedding.BaseURL,
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			Timeout:           cfg.Embedding.Timeout,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			Burst:             cfg.Embedding.Burst,
		})
	case "hash":
		return embedding.NewHashEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

// withCache wraps embedder with the configured query cache. A Redis cache
// that cannot be reached falls back to memory.
func (a *App) withCache(ctx context.Context, embedder domain.Embedder) (domain.Embedder, error) {
	var repo domain.CacheRepository

	switch a.Config.Cache.Type {
	case "none":
		return embedder, nil
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, a.Config.Cache.RedisURL, "foodmatch:")
		if err != nil {
			if !errors.Is(err, domain.ErrCacheUnavailable) {
				return nil, err
			}
			log.Printf("[CACHE] Redis unavailable, falling back to memory cache: %v", err)
			break
		}
		log.Printf("[CACHE] Using Redis cache")
		a.closers = append(a.closers, redisCache.Close)
		repo = redisCache
	}

	if repo == nil {
		memoryCache := cache.NewMemoryCache(0)
		a.closers = append(a.closers, memoryCache.Close)
		repo = memoryCache
	}

	return embedding.NewCachedEmbedder(embedder, repo, a.Config.Cache.TTL), nil
}

// Close releases everything New opened, most recent first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
