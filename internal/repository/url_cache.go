package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const urlCachePrefix = "url:"

// CachedURL is the redirect-path projection of a link: just enough to answer
// a redirect without touching Postgres.
type CachedURL struct {
	OriginalURL    string     `json:"originalUrl"`
	ExpirationTime *time.Time `json:"expirationTime,omitempty"`
}

// URLCache fronts the urls table for the redirect hot path. All failures are
// soft: a broken cache degrades to database lookups, it never fails a redirect.
type URLCache struct {
	client redis.UniversalClient
}

func NewURLCache(client redis.UniversalClient) *URLCache {
	return &URLCache{client: client}
}

func urlCacheKey(shortCode string) string { return urlCachePrefix + shortCode }

func (c *URLCache) Get(ctx context.Context, shortCode string) *CachedURL {
	raw, err := c.client.Get(ctx, urlCacheKey(shortCode)).Bytes()
	if err != nil {
		return nil
	}
	var cached CachedURL
	if err := json.Unmarshal(raw, &cached); err != nil {
		_ = c.client.Del(ctx, urlCacheKey(shortCode)).Err()
		return nil
	}
	return &cached
}

func (c *URLCache) Set(ctx context.Context, shortCode string, value *CachedURL, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, urlCacheKey(shortCode), raw, ttl).Err()
}
