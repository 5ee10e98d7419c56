// Package cache provides the quote cache repository: repeated loan previews
// with identical parameters are served from the cache instead of re-running
// the amortization engine.
package cache

// Repository is the cache contract shared by the Redis and in-memory
// implementations.
type Repository interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}
