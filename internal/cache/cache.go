package cache

import (
	"context"
	"errors"

	"github.com/smartcafe/storefront/internal/cart"
)

// CartCache holds each visitor's cart between requests.
type CartCache interface {
	Get(ctx context.Context, visitorID string) (*cart.Cart, error)
	Set(ctx context.Context, visitorID string, c *cart.Cart) error
	Delete(ctx context.Context, visitorID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Load returns the visitor's cart, or an empty one on a miss.
func Load(ctx context.Context, cc CartCache, visitorID string) (*cart.Cart, error) {
	c, err := cc.Get(ctx, visitorID)
	if errors.Is(err, ErrCacheMiss) {
		return cart.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
