package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
	redisclient "github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/clients/redis"
)

const (
	scanBatchSize   = 200
	deleteBatchSize = 500
)

// RedisBackend implements CacheBackend using Redis
type RedisBackend struct {
	client *redisclient.Client
}

// NewRedisBackend creates a new Redis cache backend
func NewRedisBackend(client *redisclient.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Type reports the networked backend
func (b *RedisBackend) Type() string {
	return providers.BackendNetworked
}

// Get retrieves a value from Redis
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.Client().Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, providers.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return result, nil
}

// Set stores a value in Redis with expiration
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Client().Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes keys in batches
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := b.client.Client().Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete from cache: %w", err)
		}
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked
func (b *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := b.client.Client().Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}

// IncrCounter increments a hash field and refreshes the hash TTL atomically
func (b *RedisBackend) IncrCounter(ctx context.Context, key, field string, delta int64, ttl time.Duration) error {
	_, err := b.client.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, field, delta)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

// Ping verifies the connection to Redis
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// Diagnostics reports key count, memory usage and server version
func (b *RedisBackend) Diagnostics(ctx context.Context) (map[string]interface{}, error) {
	size, err := b.client.Client().DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read db size: %w", err)
	}

	diag := map[string]interface{}{
		"db_size": size,
	}

	info, err := b.client.Client().Info(ctx, "server", "memory").Result()
	if err != nil {
		return diag, fmt.Errorf("failed to read server info: %w", err)
	}
	fields := parseInfo(info)
	for _, name := range []string{"redis_version", "used_memory_human", "maxmemory_policy", "uptime_in_seconds"} {
		if v, ok := fields[name]; ok {
			diag[name] = v
		}
	}
	return diag, nil
}

// parseInfo turns the "key:value" lines of INFO output into a map
func parseInfo(info string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			fields[k] = v
		}
	}
	return fields
}
