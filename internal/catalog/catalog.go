package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/smartcafe/storefront/internal/domain"
)

// Source defines where menu data comes from.
// Consumers define this interface, not the HTTP client.
type Source interface {
	Menu(ctx context.Context) ([]domain.MenuItem, error)
	Toppings(ctx context.Context) ([]domain.Topping, error)
}

type Snapshot struct {
	Items     []domain.MenuItem
	Toppings  []domain.Topping
	FetchedAt time.Time
}

func (s Snapshot) Item(id int64) (domain.MenuItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.MenuItem{}, false
}

// ToppingPrices maps topping id to unit price.
func (s Snapshot) ToppingPrices() map[int64]decimal.Decimal {
	prices := make(map[int64]decimal.Decimal, len(s.Toppings))
	for _, t := range s.Toppings {
		prices[t.ID] = t.Price
	}
	return prices
}

// ToppingNames resolves ids to names, falling back to the id itself.
func (s Snapshot) ToppingNames(ids []int64) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name := fmt.Sprint(id)
		for _, t := range s.Toppings {
			if t.ID == id {
				name = t.Name
				break
			}
		}
		names = append(names, name)
	}
	return names
}

// Catalog keeps the most recent snapshot. A refresh that started before
// another one that already completed is discarded.
type Catalog struct {
	source Source
	log    zerolog.Logger

	mu     sync.RWMutex
	issued uint64
	stored uint64
	snap   Snapshot
}

func New(source Source, log zerolog.Logger) *Catalog {
	return &Catalog{
		source: source,
		log:    log.With().Str("component", "catalog").Logger(),
	}
}

// Refresh fetches menu and toppings together and returns the snapshot that is
// current once the fetch completes, which may be a newer one than this call fetched.
func (c *Catalog) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	c.issued++
	ticket := c.issued
	c.mu.Unlock()

	var (
		items    []domain.MenuItem
		toppings []domain.Topping
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = c.source.Menu(gctx)
		if err != nil {
			return fmt.Errorf("fetch menu: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		toppings, err = c.source.Toppings(gctx)
		if err != nil {
			return fmt.Errorf("fetch toppings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ticket < c.stored {
		c.log.Debug().Uint64("ticket", ticket).Uint64("stored", c.stored).Msg("discarding superseded catalog fetch")
		return c.snap, nil
	}
	c.stored = ticket
	c.snap = Snapshot{Items: items, Toppings: toppings, FetchedAt: time.Now()}
	return c.snap, nil
}

// Current returns the last stored snapshot without fetching.
func (c *Catalog) Current() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.stored > 0
}
