package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartcafe/storefront/internal/cart"
)

const defaultCartTTL = 24 * time.Hour

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, visitorID string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(visitorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	c := cart.New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return c, nil
}

// Set stores the cart with the base TTL plus up to five minutes of jitter.
// An empty cart is deleted instead of stored.
func (r RedisCache) Set(ctx context.Context, visitorID string, c *cart.Cart) error {
	if c == nil || c.IsEmpty() {
		return r.Delete(ctx, visitorID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(visitorID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, visitorID string) error {
	if err := r.client.Del(ctx, cacheKey(visitorID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(visitorID string) string {
	return fmt.Sprintf("cafe:cart:%s", visitorID)
}
