package providers

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when a key is absent or expired
var ErrCacheMiss = errors.New("cache: key not found")

// Backend type names reported in cache statistics
const (
	BackendNetworked = "networked"
	BackendMemory    = "memory"
)

// CacheBackend is the key-value store behind the query cache
type CacheBackend interface {
	// Type returns BackendNetworked or BackendMemory
	Type() string

	// Get retrieves a value; ErrCacheMiss when absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration, replacing any previous value
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error

	// Keys lists live keys matching a glob pattern ("*" wildcard)
	Keys(ctx context.Context, pattern string) ([]string, error)

	// IncrCounter adds delta to a field of a counter hash, setting its TTL
	IncrCounter(ctx context.Context, key, field string, delta int64, ttl time.Duration) error

	// Ping verifies connectivity
	Ping(ctx context.Context) error

	// Diagnostics returns backend specific information for operators
	Diagnostics(ctx context.Context) (map[string]interface{}, error)
}
