package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcafe/storefront/internal/cart"
	"github.com/smartcafe/storefront/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, 15*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func sampleCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New()
	item := domain.MenuItem{ID: 1, Name: "Latte", Price: decimal.NewFromInt(45)}
	_, err := c.AddLine(item, 2, []int64{3, 2}, cart.ToppingPrices{2: decimal.NewFromInt(10), 3: decimal.NewFromInt(5)})
	require.NoError(t, err)
	return c
}

func TestGet_Success(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "visitor-1", sampleCart(t)))

	result, err := cache.Get(ctx, "visitor-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())
	assert.Equal(t, "1__2_3", result.Lines()[0].Key)
	assert.True(t, result.Total().Equal(decimal.NewFromInt(120)))
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("visitor-2"), `{"lines":[{"item_`))

	_, err := cache.Get(context.Background(), "visitor-2")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "visitor-3", sampleCart(t)))

	ttl := mr.TTL(cacheKey("visitor-3"))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 20*time.Minute, "TTL should be base + max jitter")
}

func TestSet_EmptyCartDeletesKey(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "visitor-4", sampleCart(t)))
	require.True(t, mr.Exists(cacheKey("visitor-4")))

	require.NoError(t, cache.Set(ctx, "visitor-4", cart.New()))
	assert.False(t, mr.Exists(cacheKey("visitor-4")))
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "visitor-5", sampleCart(t)))
	require.NoError(t, cache.Delete(ctx, "visitor-5"))
	assert.False(t, mr.Exists(cacheKey("visitor-5")))

	// deleting a missing key is not an error
	require.NoError(t, cache.Delete(ctx, "visitor-5"))
}

func TestRedis_ConnectionError(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()

	_, err := cache.Get(context.Background(), "visitor-6")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestLoad_MissReturnsEmptyCart(t *testing.T) {
	c, err := Load(context.Background(), NewMemoryCache(), "nobody")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
