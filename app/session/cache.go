package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/feed-sync/app/feed"
)

// Record is one cached feed snapshot: the rendered item list plus the
// pagination cursor, stamped with the write time for TTL enforcement.
type Record struct {
	Items     []feed.Item `json:"items"`
	Cursor    int         `json:"cursor"`
	Timestamp int64       `json:"timestamp"`
}

// NewRecord stamps a snapshot with the given write time.
func NewRecord(items []feed.Item, cursor int, now time.Time) Record {
	return Record{
		Items:     items,
		Cursor:    cursor,
		Timestamp: now.UnixMilli(),
	}
}

// Expired reports whether the record's age at the given instant exceeds ttl.
// A record written at T is honored up to and including T+ttl and treated as
// absent after that.
func (r Record) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(r.Timestamp)) > ttl
}

// Cache is the Redis-backed session store holding one Record per
// (viewer, feed variant) pair. Entries carry a Redis expiry and are
// additionally age-checked on read, so a snapshot is never served past
// its TTL even when Redis expiry lags.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(addr string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// TTL returns the configured record lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Load returns the cached record for the viewer and variant, or ok=false on
// a miss. A corrupt entry is discarded silently and reported as a miss, as
// is an expired one; Redis errors degrade to a miss so a flaky cache never
// blocks the network path.
func (c *Cache) Load(ctx context.Context, viewerID, variantKey string) (*Record, bool) {
	key := recordKey(viewerID, variantKey)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("Session cache read failed", "key", key, "error", err)
		return nil, false
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Debug("Discarding corrupt session cache entry", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false
	}

	if record.Expired(time.Now(), c.ttl) {
		c.client.Del(ctx, key)
		return nil, false
	}

	return &record, true
}

// Save writes the record under the viewer/variant key with the cache TTL.
func (c *Cache) Save(ctx context.Context, viewerID, variantKey string, record Record) error {
	key := recordKey(viewerID, variantKey)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session record %s: %w", key, err)
	}

	return nil
}

// Delete removes the record for the viewer and variant.
func (c *Cache) Delete(ctx context.Context, viewerID, variantKey string) error {
	if err := c.client.Del(ctx, recordKey(viewerID, variantKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func recordKey(viewerID, variantKey string) string {
	if viewerID == "" {
		viewerID = "anonymous"
	}
	return fmt.Sprintf("feedsync:session:%s:%s", viewerID, variantKey)
}
