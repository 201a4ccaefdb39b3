// package cache provides the redis-backed cache for raw provider playlist
// responses. Entries live under a common key prefix so the whole cache can be
// cleared in one pass during the scheduled maintenance window.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
	"github.com/redis/go-redis/v9"
)

const rawKeyPrefix = "crosschart:raw:"

// Cache wraps a redis client with the key layout and TTL used for raw
// provider responses. Constructed once per run and injected into call sites.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New connects to redis using the given settings and verifies the connection.
func New(cfg shared.RedisConfig, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Cache{client: client, ttl: ttl, logger: logger}, nil
}

// rawKey builds the cache key for one (service, genre) raw playlist payload.
func rawKey(service models.Service, genre string) string {
	return fmt.Sprintf("%s%s:%s", rawKeyPrefix, service, genre)
}

// GetRaw returns the cached raw payload for (service, genre).
// The second return value reports whether the payload was present.
func (c *Cache) GetRaw(ctx context.Context, service models.Service, genre string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, rawKey(service, genre)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key: %w", err)
	}
	return payload, true, nil
}

// SetRaw stores the raw payload for (service, genre) with the configured TTL.
func (c *Cache) SetRaw(ctx context.Context, service models.Service, genre string, payload []byte) error {
	if err := c.client.Set(ctx, rawKey(service, genre), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key: %w", err)
	}
	return nil
}

// Clear deletes every raw provider response and returns the number of keys removed.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	var deleted int
	iter := c.client.Scan(ctx, 0, rawKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete cache key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan failed: %w", err)
	}

	c.logger.Info("cleared provider cache", "keys", deleted)
	return deleted, nil
}

// Count returns the number of cached raw provider responses.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	iter := c.client.Scan(ctx, 0, rawKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache scan failed: %w", err)
	}
	return count, nil
}

// Close releases the underlying redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
