package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/cache"
	"github.com/smartcafe/storefront/internal/catalog"
	"github.com/smartcafe/storefront/internal/domain"
	"github.com/smartcafe/storefront/internal/order"
	"github.com/smartcafe/storefront/internal/validation"
)

type OrdersHandler struct {
	orders  *order.Service
	catalog *catalog.Catalog
	carts   cache.CartCache
	locks   *visitorLocks
	render  *Renderer
	timeout time.Duration
	log     zerolog.Logger
}

func NewOrdersHandler(orders *order.Service, cat *catalog.Catalog, carts cache.CartCache, locks *visitorLocks, render *Renderer, timeout time.Duration, log zerolog.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		catalog: cat,
		carts:   carts,
		locks:   locks,
		render:  render,
		timeout: timeout,
		log:     log,
	}
}

// POST /orders
func (h *OrdersHandler) Place(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	visitorID := getVisitorID(r.Context())
	unlock := h.locks.Lock(visitorID)
	defer unlock()

	c, err := cache.Load(ctx, h.carts, visitorID)
	if err != nil {
		h.log.Error().Err(err).Msg("cart load failed")
		setFlash(w, flashError, "Your cart could not be loaded, please try again")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	id, err := h.orders.Place(ctx, visitorID, c.Lines())
	if errors.Is(err, order.ErrEmptyCart) {
		setFlash(w, flashError, "Your cart is empty")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		setFlash(w, flashError, backend.Message(err, "The order could not be placed"))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	snap, _ := h.catalog.Current()
	view := newCartView(c, snap)
	rc := &receipt{OrderID: id, Total: formatMoney(view.Total)}
	for _, l := range view.Lines {
		rc.Lines = append(rc.Lines, receiptLine{
			Name:      l.Name,
			Qty:       l.Qty,
			Toppings:  l.Toppings,
			LineTotal: formatMoney(l.LineTotal),
		})
	}

	if err := h.carts.Delete(ctx, visitorID); err != nil {
		h.log.Error().Err(err).Int64("order_id", id).Msg("clear cart after order failed")
	}

	writeFlash(w, flash{
		Kind:    flashSuccess,
		Message: fmt.Sprintf("Order #%d placed", id),
		Receipt: rc,
	})
	http.Redirect(w, r, "/status-order?id="+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

type statusView struct {
	Query string
	Error string
	Order *domain.Order
	Steps []string
}

// GET /status-order?id=
func (h *OrdersHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view := statusView{
		Query: r.URL.Query().Get("id"),
		Steps: []string{
			domain.OrderStatusPreparing.String(),
			domain.OrderStatusReady.String(),
			domain.OrderStatusCompleted.String(),
		},
	}
	if view.Query == "" {
		h.render.Page(w, r, http.StatusOK, "status", view)
		return
	}

	id, err := validation.ParseOrderID(view.Query)
	if err != nil {
		view.Error = "Enter a valid order number"
		h.render.Page(w, r, http.StatusUnprocessableEntity, "status", view)
		return
	}

	o, err := h.orders.Detail(ctx, id)
	if err != nil {
		h.log.Warn().Err(err).Int64("order_id", id).Msg("order status lookup failed")
		view.Error = backend.Message(err, "Order not found")
		h.render.Page(w, r, lookupStatus(err), "status", view)
		return
	}
	view.Order = o
	h.render.Page(w, r, http.StatusOK, "status", view)
}

// lookupStatus mirrors a backend 404 and reports other failures as 502.
func lookupStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
