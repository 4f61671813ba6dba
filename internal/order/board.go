package order

import (
	"slices"
	"sync"
	"time"

	"github.com/smartcafe/storefront/internal/domain"
)

// Board is one staff visitor's last fetched order listing.
type Board struct {
	mu        sync.RWMutex
	orders    []domain.Order
	fetchedAt time.Time
}

func (b *Board) Replace(orders []domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = slices.Clone(orders)
	b.fetchedAt = time.Now()
}

func (b *Board) Orders() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.orders)
}

// Loaded reports whether the board was ever filled.
func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.fetchedAt.IsZero()
}

func (b *Board) FetchedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fetchedAt
}

func (b *Board) Find(id int64) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

// Apply swaps in status and completion time of updated for the order with
// the same id. It reports false when the board does not hold that order.
func (b *Board) Apply(updated domain.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID == updated.ID {
			b.orders[i].Status = updated.Status
			b.orders[i].CompletedAt = updated.CompletedAt
			return true
		}
	}
	return false
}

// Boards hands out one Board per visitor.
type Boards struct {
	mu     sync.Mutex
	boards map[string]*Board
}

func NewBoards() *Boards {
	return &Boards{boards: make(map[string]*Board)}
}

func (bs *Boards) For(visitorID string) *Board {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.boards[visitorID]
	if !ok {
		b = &Board{}
		bs.boards[visitorID] = b
	}
	return b
}

// Drop forgets the visitor's board, e.g. on logout.
func (bs *Boards) Drop(visitorID string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	delete(bs.boards, visitorID)
}
