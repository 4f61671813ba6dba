package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/domain"
	"github.com/smartcafe/storefront/internal/order"
)

type DashboardHandler struct {
	orders  *order.Service
	boards  *order.Boards
	render  *Renderer
	timeout time.Duration
	log     zerolog.Logger
}

func NewDashboardHandler(orders *order.Service, boards *order.Boards, render *Renderer, timeout time.Duration, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		orders:  orders,
		boards:  boards,
		render:  render,
		timeout: timeout,
		log:     log,
	}
}

type dashboardView struct {
	Orders    []domain.Order
	FetchedAt time.Time
	Error     string
}

// GET /dashboard fetches on the first visit and on ?refresh=1; otherwise
// it shows the board as last fetched and updated.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	board := h.boards.For(getVisitorID(r.Context()))
	if !board.Loaded() || r.URL.Query().Get("refresh") == "1" {
		orders, err := h.orders.List(ctx)
		if err != nil {
			h.log.Warn().Err(err).Str("request_id", getRequestID(r.Context())).Msg("order listing failed")
			h.render.Page(w, r, http.StatusBadGateway, "dashboard", dashboardView{
				Error: backend.Message(err, "Could not load orders"),
			})
			return
		}
		board.Replace(orders)
	}

	h.render.Page(w, r, http.StatusOK, "dashboard", dashboardView{
		Orders:    board.Orders(),
		FetchedAt: board.FetchedAt(),
	})
}

// POST /dashboard/orders/{id}/ready
func (h *DashboardHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		setFlash(w, flashError, "Invalid order number")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	board := h.boards.For(getVisitorID(r.Context()))
	current, ok := board.Find(id)
	if !ok {
		orders, err := h.orders.List(ctx)
		if err != nil {
			setFlash(w, flashError, backend.Message(err, "Could not load orders"))
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		board.Replace(orders)
		if current, ok = board.Find(id); !ok {
			setFlash(w, flashError, fmt.Sprintf("Order #%d not found", id))
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}

	updated, err := h.orders.MarkReady(ctx, current)
	switch {
	case errors.Is(err, order.ErrNotMarkable):
		setFlash(w, flashError, fmt.Sprintf("Order #%d is already %s", id, current.Status))
	case err != nil:
		setFlash(w, flashError, backend.Message(err, "Update failed"))
	default:
		board.Apply(updated)
		setFlash(w, flashSuccess, fmt.Sprintf("Order #%d is now READY", id))
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
