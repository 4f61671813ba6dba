package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/smartcafe/storefront/internal/cart"
)

// MemoryCache keeps carts in process. Carts are stored encoded so callers
// never share a *cart.Cart.
type MemoryCache struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{carts: make(map[string][]byte)}
}

func (m *MemoryCache) Get(_ context.Context, visitorID string) (*cart.Cart, error) {
	m.mu.RLock()
	data, ok := m.carts[visitorID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	c := cart.New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *MemoryCache) Set(ctx context.Context, visitorID string, c *cart.Cart) error {
	if c == nil || c.IsEmpty() {
		return m.Delete(ctx, visitorID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.carts[visitorID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, visitorID string) error {
	m.mu.Lock()
	delete(m.carts, visitorID)
	m.mu.Unlock()
	return nil
}
