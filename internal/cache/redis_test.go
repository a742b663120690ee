package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/workstation-scheduler/internal/application"
	"github.com/example/workstation-scheduler/internal/calendar"
)

func unreachableCache(t *testing.T) *RedisAvailabilityCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisAvailabilityCache(client, Options{Prefix: "test", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisAvailabilityCacheKeys(t *testing.T) {
	t.Parallel()
	c := unreachableCache(t)
	key := application.AvailabilityKey{ResourceID: "ws-1", Start: calendar.MustParseDate("2024-03-04"), Days: 7}

	if got := c.entryKey(key, 3); got != "test:availability:ws-1:3:2024-03-04:7" {
		t.Fatalf("unexpected entry key %q", got)
	}
	if got := c.generationKey("ws-1"); got != "test:availability:gen:ws-1" {
		t.Fatalf("unexpected generation key %q", got)
	}
	if c.entryKey(key, 3) == c.entryKey(key, 4) {
		t.Fatal("expected generations to produce distinct keys")
	}
}

func TestRedisAvailabilityCacheDegradesToMiss(t *testing.T) {
	t.Parallel()
	c := unreachableCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := application.AvailabilityKey{ResourceID: "ws-1", Start: calendar.MustParseDate("2024-03-04"), Days: 1}
	days, gen, ok := c.Lookup(ctx, key)
	if ok || days != nil {
		t.Fatalf("expected a miss, got %v", days)
	}

	// A store with the reported generation must not reach Redis, and neither
	// it nor an invalidation may panic.
	c.Store(ctx, key, gen, []application.DayStatus{{Date: key.Start, Status: application.DayAvailable}})
	c.InvalidateResource(ctx, "ws-1")
}

func TestDialRejectsMalformedURL(t *testing.T) {
	t.Parallel()
	if _, err := Dial(context.Background(), "not a url", Options{}); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestNewRedisAvailabilityCacheDefaults(t *testing.T) {
	t.Parallel()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	c := NewRedisAvailabilityCache(client, Options{})
	defer c.Close()

	if c.prefix != "scheduler" || c.ttl != defaultTTL || c.logger == nil {
		t.Fatalf("unexpected defaults: prefix=%q ttl=%v", c.prefix, c.ttl)
	}
}
