package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/foodscan/matcher/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder memoizes vectors per (model, text) in a cache repository.
// Concurrent misses for the same single text share one provider call.
// Cache failures are logged and never fail an embedding.
type CachedEmbedder struct {
	inner domain.Embedder
	cache domain.CacheRepository
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedEmbedder wraps inner with a cache
func NewCachedEmbedder(inner domain.Embedder, cache domain.CacheRepository, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{inner: inner, cache: cache, ttl: ttl}
}

// Model returns the wrapped embedder's model
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

// Embed returns cached vectors where available and embeds the rest
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []int

	for i, text := range texts {
		if vector, ok := e.lookup(ctx, e.cacheKey(text)); ok {
			vectors[i] = vector
			continue
		}
		missing = append(missing, i)
	}

	switch len(missing) {
	case 0:
		return vectors, nil
	case 1:
		i := missing[0]
		key := e.cacheKey(texts[i])
		text := texts[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// The shared call is not canceled with the caller that started it;
		// each caller stops waiting on its own context instead.
		shared := context.WithoutCancel(ctx)
		ch := e.group.DoChan(key, func() (interface{}, error) {
			embedded, err := e.inner.Embed(shared, []string{text})
			if err != nil {
				return nil, err
			}
			if len(embedded) != 1 {
				return nil, fmt.Errorf("expected 1 embedding, got %d", len(embedded))
			}
			e.store(shared, key, embedded[0])
			return embedded[0], nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			vector := res.Val.([]float32)
			vectors[i] = append([]float32(nil), vector...)
			return vectors, nil
		}
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	embedded, err := e.inner.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(embedded))
	}
	for j, i := range missing {
		vectors[i] = embedded[j]
		e.store(ctx, e.cacheKey(texts[i]), embedded[j])
	}
	return vectors, nil
}

// cacheKey builds "embedding:{model}:{sha1(normalized text)}"
func (e *CachedEmbedder) cacheKey(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha1.Sum([]byte(normalized))
	return fmt.Sprintf("embedding:%s:%s", e.inner.Model(), hex.EncodeToString(sum[:]))
}

func (e *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	value, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	vector, ok := toVector(value)
	if !ok {
		log.Printf("[CACHE] Dropping undecodable entry %s (%T)", key, value)
		_ = e.cache.Delete(ctx, key)
		return nil, false
	}
	return vector, true
}

func (e *CachedEmbedder) store(ctx context.Context, key string, vector []float32) {
	if err := e.cache.Set(ctx, key, vector, e.ttl); err != nil {
		log.Printf("[CACHE] Failed to cache embedding %s: %v", key, err)
	}
}

// toVector converts a cached value back into a vector. Caches round-trip
// values through JSON, so numbers usually come back as []interface{} of float64.
func toVector(value interface{}) ([]float32, bool) {
	switch v := value.(type) {
	case []float32:
		out := make([]float32, len(v))
		copy(out, v)
		return out, true
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out, true
	case []interface{}:
		out := make([]float32, len(v))
		for i, x := range v {
			f, ok := x.(float64)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	}
	return nil, false
}
