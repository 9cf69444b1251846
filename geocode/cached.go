package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// Reverser is anything that reverse geocodes.
type Reverser interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*model.GeocodeResult, error)
}

// Store is the part of a Redis client the cache uses. *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CacheObserver counts cache outcomes. metrics.GeocodeObserver implements it.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

type nopCacheObserver struct{}

func (nopCacheObserver) CacheHit()  {}
func (nopCacheObserver) CacheMiss() {}

// Cached serves reverse geocoding results from Redis before asking next.
// Redis failures degrade to calling next; failed lookups are not cached.
type Cached struct {
	next Reverser
	rc   Store
	ttl  time.Duration
	obs  CacheObserver
	log  *slog.Logger
}

// NewCached wraps next. A nil rc disables caching. ttl defaults to 24h.
func NewCached(next Reverser, rc Store, ttl time.Duration, obs CacheObserver, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if obs == nil {
		obs = nopCacheObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, rc: rc, ttl: ttl, obs: obs, log: logger.With("component", "geocode")}
}

// OpenRedis parses a redis:// URL into a client. An empty URL returns nil.
func OpenRedis(rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// CacheKey is the Redis key for a coordinate.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("revgeo:%.4f:%.4f", lat, lon)
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lon float64) (*model.GeocodeResult, error) {
	if c.rc == nil {
		return c.next.ReverseGeocode(ctx, lat, lon)
	}
	key := CacheKey(lat, lon)
	s, err := c.rc.Get(ctx, key).Result()
	switch {
	case err == nil:
		var out model.GeocodeResult
		if jerr := json.Unmarshal([]byte(s), &out); jerr == nil {
			c.obs.CacheHit()
			return &out, nil
		}
		c.log.Debug("discarding unreadable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Debug("redis get failed", "key", key, "err", err)
	}
	c.obs.CacheMiss()

	res, err := c.next.ReverseGeocode(ctx, lat, lon)
	if err != nil || res == nil {
		return res, err
	}
	if b, jerr := json.Marshal(res); jerr == nil {
		if serr := c.rc.Set(ctx, key, string(b), c.ttl).Err(); serr != nil {
			c.log.Debug("redis set failed", "key", key, "err", serr)
		}
	}
	return res, nil
}
