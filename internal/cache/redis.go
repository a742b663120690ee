// Package cache provides a Redis-backed availability cache shared by every
// scheduler process.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/example/workstation-scheduler/internal/application"
)

const defaultTTL = 30 * time.Second

// RedisAvailabilityCache implements application.AvailabilityCache on Redis.
//
// Every workstation has a generation counter that InvalidateResource
// increments. Entries are keyed by the generation they were computed under,
// so a projection stored after an invalidation is never read back. Redis
// failures are logged and treated as cache misses.
type RedisAvailabilityCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ application.AvailabilityCache = (*RedisAvailabilityCache)(nil)

// Options tunes a RedisAvailabilityCache. Zero values take defaults.
type Options struct {
	// Prefix namespaces every key; defaults to "scheduler".
	Prefix string
	TTL    time.Duration
	Logger *slog.Logger
}

// NewRedisAvailabilityCache wraps client.
func NewRedisAvailabilityCache(client redis.UniversalClient, opts Options) *RedisAvailabilityCache {
	if opts.Prefix == "" {
		opts.Prefix = "scheduler"
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RedisAvailabilityCache{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		logger: opts.Logger.With("component", "availability_cache"),
	}
}

// Dial parses a redis:// URL and returns a cache over a new client after
// checking connectivity.
func Dial(ctx context.Context, url string, opts Options) (*RedisAvailabilityCache, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisAvailabilityCache(client, opts), nil
}

// Close releases the underlying client.
func (c *RedisAvailabilityCache) Close() error {
	return c.client.Close()
}

func (c *RedisAvailabilityCache) generationKey(resourceID string) string {
	return fmt.Sprintf("%s:availability:gen:%s", c.prefix, resourceID)
}

func (c *RedisAvailabilityCache) entryKey(key application.AvailabilityKey, generation uint64) string {
	return fmt.Sprintf("%s:availability:%s:%d:%s:%d", c.prefix, key.ResourceID, generation, key.Start, key.Days)
}

func (c *RedisAvailabilityCache) generation(ctx context.Context, resourceID string) (uint64, error) {
	raw, err := c.client.Get(ctx, c.generationKey(resourceID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// Lookup implements application.AvailabilityCache.
func (c *RedisAvailabilityCache) Lookup(ctx context.Context, key application.AvailabilityKey) ([]application.DayStatus, uint64, bool) {
	gen, err := c.generation(ctx, key.ResourceID)
	if err != nil {
		c.logger.DebugContext(ctx, "availability cache lookup failed", "resource_id", key.ResourceID, "error", err)
		// Unknown generation: report one that no Store can match.
		return nil, ^uint64(0), false
	}

	payload, err := c.client.Get(ctx, c.entryKey(key, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.DebugContext(ctx, "availability cache lookup failed", "resource_id", key.ResourceID, "error", err)
		}
		return nil, gen, false
	}

	var days []application.DayStatus
	if err := json.Unmarshal(payload, &days); err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable availability entry", "resource_id", key.ResourceID, "error", err)
		return nil, gen, false
	}
	return days, gen, true
}

// Store implements application.AvailabilityCache. It does nothing when the
// workstation has been invalidated since generation was observed.
func (c *RedisAvailabilityCache) Store(ctx context.Context, key application.AvailabilityKey, generation uint64, days []application.DayStatus) {
	current, err := c.generation(ctx, key.ResourceID)
	if err != nil || current != generation {
		return
	}
	payload, err := json.Marshal(days)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode availability entry", "resource_id", key.ResourceID, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.entryKey(key, generation), payload, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "availability cache store failed", "resource_id", key.ResourceID, "error", err)
	}
}

// InvalidateResource implements application.AvailabilityCache.
func (c *RedisAvailabilityCache) InvalidateResource(ctx context.Context, resourceID string) {
	if err := c.client.Incr(ctx, c.generationKey(resourceID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "availability cache invalidation failed", "resource_id", resourceID, "error", err)
	}
}
