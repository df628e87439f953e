package domain

import "errors"

var (
	// ErrNotReady is returned when no vector index snapshot has been loaded yet
	ErrNotReady = errors.New("vector index not loaded")
	// ErrInvalidInput is returned when request parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderFailure is returned when the embedding provider errors or times out
	ErrProviderFailure = errors.New("embedding provider failed")
	// ErrStoreFailure is returned when reading or writing the catalog store fails
	ErrStoreFailure = errors.New("catalog store failed")
	// ErrEmptyCatalog is returned when the store has no embedding records to load
	ErrEmptyCatalog = errors.New("no food embeddings found, run the indexer first")
	// ErrCorruptIndex is returned when a stored vector does not match its recorded dimension
	ErrCorruptIndex = errors.New("corrupt embedding record")
	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
