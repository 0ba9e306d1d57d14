package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	"github.com/whyuwhyi/bjut-se-sub000/pkg/utils"
)

// Default lifetimes per cache category
const (
	DefaultSearchTTL     = 15 * time.Minute
	DefaultSuggestionTTL = 5 * time.Minute
	DefaultFilterTTL     = 30 * time.Minute
)

const (
	statsKeyTTL   = 48 * time.Hour
	statsTimeout  = 2 * time.Second
	statsFieldHit = "hits"
	statsFieldSet = "sets"
)

// QueryCacheConfig configures a QueryCache
type QueryCacheConfig struct {
	KeyPrefix string
	TTLs      map[entities.CacheCategory]time.Duration
}

// CacheStats is a point-in-time view of the cache for operators
type CacheStats struct {
	BackendType    string                            `json:"backendType"`
	FailedOver     bool                              `json:"failedOver"`
	FailoverReason string                            `json:"failoverReason,omitempty"`
	TotalKeys      int                               `json:"totalKeys"`
	CategoryKeys   map[entities.CacheCategory]int    `json:"categoryKeys"`
	Diagnostics    map[string]interface{}            `json:"diagnostics,omitempty"`
	TTLs           map[entities.CacheCategory]string `json:"ttls"`
}

type backendRef struct {
	providers.CacheBackend
}

// QueryCache stores serialized query results under keys derived from the
// canonical form of the query parameters. It starts on the networked backend
// and moves to the in-process backend for good after the first networked
// failure; callers only ever observe hits and misses.
type QueryCache struct {
	prefix   string
	ttls     map[entities.CacheCategory]time.Duration
	active   atomic.Pointer[backendRef]
	fallback providers.CacheBackend
	metrics  *observability.Metrics
	now      func() time.Time

	failoverOnce   sync.Once
	failoverReason atomic.Value
	statsWG        sync.WaitGroup
}

// NewQueryCache creates a cache over primary with fallback as the in-process
// backend. A nil primary, or one that fails its first ping, starts the cache
// on the fallback.
func NewQueryCache(ctx context.Context, primary, fallback providers.CacheBackend, cfg QueryCacheConfig, metrics *observability.Metrics) *QueryCache {
	c := &QueryCache{
		prefix:   cfg.KeyPrefix,
		fallback: fallback,
		metrics:  metrics,
		now:      time.Now,
		ttls: map[entities.CacheCategory]time.Duration{
			entities.CategorySearch:     DefaultSearchTTL,
			entities.CategorySuggestion: DefaultSuggestionTTL,
			entities.CategoryFilter:     DefaultFilterTTL,
		},
	}
	if c.prefix == "" {
		c.prefix = "forum"
	}
	for category, ttl := range cfg.TTLs {
		if ttl > 0 {
			c.ttls[category] = ttl
		}
	}

	if primary == nil {
		c.active.Store(&backendRef{fallback})
		log.Info().Msg("Query cache using in-process backend")
		return c
	}

	c.active.Store(&backendRef{primary})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := primary.Ping(pingCtx); err != nil {
		c.failover(ctx, "ping", err)
	} else {
		log.Info().Str("backend", primary.Type()).Msg("Query cache using networked backend")
	}
	return c
}

// Backend returns the backend currently serving requests
func (c *QueryCache) Backend() providers.CacheBackend {
	return c.active.Load().CacheBackend
}

// FailedOver reports whether the cache has moved to the in-process backend
func (c *QueryCache) FailedOver() bool {
	_, ok := c.failoverReason.Load().(string)
	return ok
}

// TTL returns the default lifetime of a category
func (c *QueryCache) TTL(category entities.CacheCategory) time.Duration {
	return c.ttls[category]
}

// Key returns the physical key for params in category
func (c *QueryCache) Key(category entities.CacheCategory, params map[string]interface{}) string {
	return utils.BuildCacheKey(c.prefix, string(category), params)
}

// Get looks params up in category and decodes a hit into out. Backend and
// decoding failures are reported as a miss.
func (c *QueryCache) Get(ctx context.Context, category entities.CacheCategory, params map[string]interface{}, out interface{}) (bool, error) {
	if _, err := entities.ParseCacheCategory(string(category)); err != nil {
		return false, err
	}
	key := c.Key(category, params)

	var data []byte
	err := c.do(ctx, "get", func(b providers.CacheBackend) error {
		var getErr error
		data, getErr = b.Get(ctx, key)
		return getErr
	})
	backend := c.Backend().Type()
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		}
		observability.RecordCacheMiss(ctx, c.metrics, string(category), backend)
		return false, nil
	}

	entry, err := entities.UnmarshalCacheEntry(data)
	if err == nil {
		err = entry.Decode(out)
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Unreadable cache entry, treating as miss")
		observability.RecordCacheMiss(ctx, c.metrics, string(category), backend)
		return false, nil
	}

	observability.RecordCacheHit(ctx, c.metrics, string(category), backend)
	c.recordStat(category, statsFieldHit)
	return true, nil
}

// Set stores value under params in category, replacing any previous entry.
// An optional positive ttl overrides the category default.
func (c *QueryCache) Set(ctx context.Context, category entities.CacheCategory, params map[string]interface{}, value interface{}, ttl ...time.Duration) error {
	if _, err := entities.ParseCacheCategory(string(category)); err != nil {
		return err
	}
	lifetime := c.ttls[category]
	if len(ttl) > 0 && ttl[0] > 0 {
		lifetime = ttl[0]
	}

	key := c.Key(category, params)
	entry, err := entities.NewCacheEntry(key, category, value, lifetime, c.now())
	if err != nil {
		return err
	}
	data, err := entry.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.do(ctx, "set", func(b providers.CacheBackend) error {
		return b.Set(ctx, key, data, lifetime)
	}); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache set failed")
		return nil
	}

	observability.RecordCacheSet(ctx, c.metrics, string(category), c.Backend().Type())
	c.recordStat(category, statsFieldSet)
	return nil
}

// Delete removes the entry for params in category
func (c *QueryCache) Delete(ctx context.Context, category entities.CacheCategory, params map[string]interface{}) error {
	if _, err := entities.ParseCacheCategory(string(category)); err != nil {
		return err
	}
	key := c.Key(category, params)
	if err := c.do(ctx, "delete", func(b providers.CacheBackend) error {
		return b.Delete(ctx, key)
	}); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache delete failed")
	}
	return nil
}

// Evict removes entries by physical key
func (c *QueryCache) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.do(ctx, "evict", func(b providers.CacheBackend) error {
		return b.Delete(ctx, keys...)
	})
}

// ClearCategory removes every entry of a category and returns how many were removed
func (c *QueryCache) ClearCategory(ctx context.Context, category entities.CacheCategory) (int, error) {
	if _, err := entities.ParseCacheCategory(string(category)); err != nil {
		return 0, err
	}

	keys, err := c.categoryKeys(ctx, category)
	if err != nil {
		return 0, err
	}
	if err := c.Evict(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to clear %s cache: %w", category, err)
	}

	log.Info().Str("category", string(category)).Int("keys", len(keys)).Msg("Cleared cache category")
	return len(keys), nil
}

// ClearAll removes the entries of every category. Statistics are kept.
func (c *QueryCache) ClearAll(ctx context.Context) (int, error) {
	total := 0
	for _, category := range entities.CacheCategories {
		n, err := c.ClearCategory(ctx, category)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// CategoriesFor maps an entity type to the categories a mutation of it makes stale
func CategoriesFor(entityType entities.EntityType) []entities.CacheCategory {
	switch entityType {
	case entities.EntityResource, entities.EntityPost:
		return []entities.CacheCategory{entities.CategorySearch, entities.CategorySuggestion}
	case entities.EntityCategory, entities.EntityTag:
		return []entities.CacheCategory{entities.CategorySearch, entities.CategorySuggestion, entities.CategoryFilter}
	default:
		return []entities.CacheCategory{entities.CategorySearch}
	}
}

// Invalidate clears every category made stale by signal and returns them
func (c *QueryCache) Invalidate(ctx context.Context, signal entities.InvalidationSignal) ([]entities.CacheCategory, error) {
	if err := signal.Validate(); err != nil {
		return nil, err
	}

	categories := CategoriesFor(signal.EntityType)
	for _, category := range categories {
		if _, err := c.ClearCategory(ctx, category); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("entity_type", string(signal.EntityType)).
		Str("action", string(signal.Action)).
		Interface("categories", categories).
		Msg("Invalidated cache")
	return categories, nil
}

// Entries calls fn for every readable entry of category. Entries that cannot
// be read or decoded are skipped; they expire through their TTL.
func (c *QueryCache) Entries(ctx context.Context, category entities.CacheCategory, fn func(key string, entry *entities.CacheEntry) error) (int, error) {
	keys, err := c.categoryKeys(ctx, category)
	if err != nil {
		return 0, err
	}

	scanned := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return scanned, err
		}

		var data []byte
		err := c.do(ctx, "scan", func(b providers.CacheBackend) error {
			var getErr error
			data, getErr = b.Get(ctx, key)
			return getErr
		})
		if err != nil {
			continue
		}
		entry, err := entities.UnmarshalCacheEntry(data)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Skipping unreadable cache entry")
			continue
		}

		scanned++
		if err := fn(key, entry); err != nil {
			return scanned, err
		}
	}
	return scanned, nil
}

// Stats returns key counts per category and backend diagnostics
func (c *QueryCache) Stats(ctx context.Context) (*CacheStats, error) {
	backend := c.Backend()
	stats := &CacheStats{
		BackendType:  backend.Type(),
		FailedOver:   c.FailedOver(),
		CategoryKeys: make(map[entities.CacheCategory]int, len(entities.CacheCategories)),
		TTLs:         make(map[entities.CacheCategory]string, len(c.ttls)),
	}
	if reason, ok := c.failoverReason.Load().(string); ok {
		stats.FailoverReason = reason
	}

	for _, category := range entities.CacheCategories {
		keys, err := c.categoryKeys(ctx, category)
		if err != nil {
			return nil, err
		}
		stats.CategoryKeys[category] = len(keys)
		stats.TotalKeys += len(keys)
		stats.TTLs[category] = c.ttls[category].String()
	}

	diag, err := c.Backend().Diagnostics(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cache diagnostics")
	}
	stats.Diagnostics = diag
	return stats, nil
}

// WaitStats blocks until in-flight statistics writes have finished
func (c *QueryCache) WaitStats() {
	c.statsWG.Wait()
}

func (c *QueryCache) categoryKeys(ctx context.Context, category entities.CacheCategory) ([]string, error) {
	pattern := fmt.Sprintf("%s:%s:*", c.prefix, category)
	var keys []string
	err := c.do(ctx, "keys", func(b providers.CacheBackend) error {
		var keysErr error
		keys, keysErr = b.Keys(ctx, pattern)
		return keysErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s cache keys: %w", category, err)
	}
	return keys, nil
}

// do runs op on the active backend. A networked failure that is not a miss
// or a cancellation switches the cache to the in-process backend and op is
// retried there once.
func (c *QueryCache) do(ctx context.Context, op string, fn func(b providers.CacheBackend) error) error {
	backend := c.Backend()
	err := fn(backend)
	if err == nil || errors.Is(err, providers.ErrCacheMiss) {
		return err
	}
	if backend.Type() != providers.BackendNetworked || ctx.Err() != nil {
		return err
	}

	c.failover(ctx, op, err)
	return fn(c.Backend())
}

func (c *QueryCache) failover(ctx context.Context, op string, cause error) {
	c.failoverOnce.Do(func() {
		reason := fmt.Sprintf("%s: %v", op, cause)
		c.failoverReason.Store(reason)
		c.active.Store(&backendRef{c.fallback})
		observability.RecordCacheFailover(ctx, c.metrics, op)
		log.Error().Err(cause).Str("operation", op).Msg("Networked cache failed, switched to in-process cache for the rest of the process lifetime")
	})
}

// recordStat bumps the daily counter for category in the background
func (c *QueryCache) recordStat(category entities.CacheCategory, field string) {
	backend := c.Backend()
	key := fmt.Sprintf("%s:stats:%s", c.prefix, c.now().UTC().Format("2006-01-02"))
	name := fmt.Sprintf("%s:%s", category, field)

	c.statsWG.Add(1)
	go func() {
		defer c.statsWG.Done()
		// Use a fresh context since the request context might be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()

		if err := backend.IncrCounter(ctx, key, name, 1, statsKeyTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Str("field", name).Msg("Failed to record cache statistics")
		}
	}()
}
