package port

import "context"

// Cache defines the interface for caching read-model query results
type Cache interface {
	// Get loads a cached value into dest. Returns false on a cache miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores a value in cache with the adapter's TTL
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePattern removes all keys matching pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}
