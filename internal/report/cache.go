package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed summaries per owner and month.
//
// Get returns the key a fresh summary has to be stored under, whether or not
// it found one. Invalidation moves the owner or month to a new key, so a
// summary computed before the change and stored after it is never read.
type Cache interface {
	Get(ctx context.Context, owner string, month, year int) (s Summary, key string, ok bool, err error)
	Set(ctx context.Context, key string, s Summary) error
	InvalidateMonth(ctx context.Context, owner string, month, year int) error
	InvalidateOwner(ctx context.Context, owner string) error
}

// RedisCache keeps summaries as JSON strings with a TTL. Each owner and each
// owner-month has a generation counter; both are part of the summary key.
// Counters have no TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache; ttl <= 0 falls back to ten minutes.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func ownerGenKey(owner string) string {
	return "report:monthly:" + owner + ":gen"
}

func monthGenKey(owner string, month, year int) string {
	return fmt.Sprintf("report:monthly:%s:%04d-%02d:gen", owner, year, month)
}

func summaryKey(owner string, ownerGen, monthGen int64, month, year int) string {
	return fmt.Sprintf("report:monthly:%s:%04d-%02d:g%d.%d", owner, year, month, ownerGen, monthGen)
}

func generation(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Get returns a cached summary.
func (c *RedisCache) Get(ctx context.Context, owner string, month, year int) (Summary, string, bool, error) {
	gens, err := c.client.MGet(ctx, ownerGenKey(owner), monthGenKey(owner, month, year)).Result()
	if err != nil {
		return Summary{}, "", false, err
	}
	ownerGen, err := generation(gens[0])
	if err != nil {
		return Summary{}, "", false, err
	}
	monthGen, err := generation(gens[1])
	if err != nil {
		return Summary{}, "", false, err
	}
	key := summaryKey(owner, ownerGen, monthGen, month, year)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, key, false, nil
	}
	if err != nil {
		return Summary{}, key, false, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, key, false, fmt.Errorf("decode cached report: %w", err)
	}
	return s, key, true, nil
}

// Set stores a summary under a key returned by Get.
func (c *RedisCache) Set(ctx context.Context, key string, s Summary) error {
	if key == "" {
		return errors.New("report cache: empty key")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// InvalidateMonth moves one month of owner to a new generation.
func (c *RedisCache) InvalidateMonth(ctx context.Context, owner string, month, year int) error {
	return c.client.Incr(ctx, monthGenKey(owner, month, year)).Err()
}

// InvalidateOwner moves every month of owner to a new generation.
func (c *RedisCache) InvalidateOwner(ctx context.Context, owner string) error {
	return c.client.Incr(ctx, ownerGenKey(owner)).Err()
}
