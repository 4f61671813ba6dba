package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is always held in lower case. The per-order endpoint answers
// with upper-case tokens and the listing with lower-case ones.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// ParseStatus normalizes an upstream status token.
func ParseStatus(s string) OrderStatus {
	return OrderStatus(strings.ToLower(strings.TrimSpace(s)))
}

func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

// CanMarkReady reports whether staff may still move the order to ready.
func (s OrderStatus) CanMarkReady() bool {
	return s != OrderStatusReady && s != OrderStatusCompleted && s != OrderStatusCanceled
}

// Reached reports whether the order has progressed at least as far as step.
// Canceled orders reach no step.
func (s OrderStatus) Reached(step OrderStatus) bool {
	rank := map[OrderStatus]int{
		OrderStatusPending:   1,
		OrderStatusPreparing: 2,
		OrderStatusReady:     3,
		OrderStatusCompleted: 4,
	}
	return rank[s] > 0 && rank[s] >= rank[step]
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type OrderLine struct {
	ItemID    int64           `json:"item_id,omitempty"`
	Quantity  int             `json:"qty"`
	MenuName  string          `json:"menu_name,omitempty"`
	Toppings  []string        `json:"toppings"`
	LineTotal decimal.Decimal `json:"total_price_item"`
	Resolved  bool            `json:"resolved"`
}

type Order struct {
	ID          int64           `json:"order_id"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderLine     `json:"items"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	UserID      *int64          `json:"user_id,omitempty"`
	Enriched    bool            `json:"enriched"`
}
