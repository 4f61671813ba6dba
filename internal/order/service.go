package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/cart"
	"github.com/smartcafe/storefront/internal/domain"
)

var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrNotMarkable = errors.New("order can no longer be marked ready")
)

// Backend is the part of the café API the order flow needs.
type Backend interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (int64, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	AllOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (backend.StatusUpdate, error)
}

type Service struct {
	backend Backend
	log     zerolog.Logger
	sfg     singleflight.Group // collapses double submits
}

func NewService(b Backend, log zerolog.Logger) *Service {
	return &Service{
		backend: b,
		log:     log.With().Str("component", "order").Logger(),
	}
}

// Place submits every cart line in one request. Concurrent calls for the
// same visitor share a single submission and its result.
func (s *Service) Place(ctx context.Context, visitorID string, lines []cart.Line) (int64, error) {
	if len(lines) == 0 {
		return 0, ErrEmptyCart
	}
	req := backend.CreateOrderRequest{Items: make([]backend.OrderItemRequest, 0, len(lines))}
	for _, l := range lines {
		req.Items = append(req.Items, backend.OrderItemRequest{
			ItemID:   l.ItemID,
			Qty:      l.Quantity,
			Toppings: l.ToppingIDs,
		})
	}

	v, err, shared := s.sfg.Do("place:"+visitorID, func() (interface{}, error) {
		return s.backend.CreateOrder(ctx, req)
	})
	if err != nil {
		s.log.Error().Err(err).Str("visitor", visitorID).Msg("create order failed")
		return 0, err
	}
	id := v.(int64)
	s.log.Info().Int64("order_id", id).Int("lines", len(lines)).Bool("shared", shared).Msg("order placed")
	return id, nil
}

// Detail fetches the per-order record and, when the bulk listing carries
// the same order, replaces its items and owner with the resolved ones.
// Status, total and timestamps always come from the per-order record.
// Listing failures are logged and the unresolved record is returned.
func (s *Service) Detail(ctx context.Context, id int64) (*domain.Order, error) {
	baseline, err := s.backend.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	listing, err := s.backend.AllOrders(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int64("order_id", id).Msg("order listing unavailable, showing unresolved items")
		return &baseline, nil
	}
	return Reconcile(baseline, listing), nil
}

// Reconcile merges the listing entry for baseline.ID into baseline.
func Reconcile(baseline domain.Order, listing []domain.Order) *domain.Order {
	out := baseline
	for _, o := range listing {
		if o.ID != baseline.ID {
			continue
		}
		out.Items = o.Items
		out.UserID = o.UserID
		out.Enriched = true
		break
	}
	return &out
}

func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.backend.AllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// MarkReady moves current to ready. Orders already ready, completed or
// canceled are refused without contacting the backend.
func (s *Service) MarkReady(ctx context.Context, current domain.Order) (domain.Order, error) {
	if !current.Status.CanMarkReady() {
		return current, ErrNotMarkable
	}

	v, err, _ := s.sfg.Do("ready:"+strconv.FormatInt(current.ID, 10), func() (interface{}, error) {
		return s.backend.UpdateOrderStatus(ctx, current.ID, domain.OrderStatusReady)
	})
	if err != nil {
		s.log.Error().Err(err).Int64("order_id", current.ID).Msg("mark ready failed")
		return current, err
	}

	upd := v.(backend.StatusUpdate)
	updated := current
	updated.Status = upd.Status
	if !updated.Status.Known() {
		updated.Status = domain.OrderStatusReady
	}
	updated.CompletedAt = upd.CompletedAt
	s.log.Info().Int64("order_id", current.ID).Str("status", updated.Status.String()).Msg("order marked ready")
	return updated, nil
}
