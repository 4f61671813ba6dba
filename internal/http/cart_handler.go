package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/cache"
	"github.com/smartcafe/storefront/internal/cart"
	"github.com/smartcafe/storefront/internal/catalog"
	"github.com/smartcafe/storefront/internal/validation"
)

type CartHandler struct {
	catalog *catalog.Catalog
	carts   cache.CartCache
	locks   *visitorLocks
	timeout time.Duration
	log     zerolog.Logger
}

func NewCartHandler(cat *catalog.Catalog, carts cache.CartCache, locks *visitorLocks, timeout time.Duration, log zerolog.Logger) *CartHandler {
	return &CartHandler{
		catalog: cat,
		carts:   carts,
		locks:   locks,
		timeout: timeout,
		log:     log,
	}
}

// POST /cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		setFlash(w, flashError, "Invalid form")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	itemID, err := validation.ParseItemID(r.PostForm.Get("item_id"))
	if err != nil {
		setFlash(w, flashError, err.Error())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	qty, err := validation.ParseQuantity(r.PostForm.Get("qty"))
	if err != nil {
		setFlash(w, flashError, err.Error())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	toppingIDs := validation.ParseToppingIDs(r.PostForm["topping"])

	snap, ok := h.catalog.Current()
	if !ok {
		snap, err = h.catalog.Refresh(ctx)
		if err != nil {
			setFlash(w, flashError, backend.Message(err, "Could not load the menu"))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	item, ok := snap.Item(itemID)
	if !ok {
		setFlash(w, flashError, "That item is no longer on the menu")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	visitorID := getVisitorID(r.Context())
	unlock := h.locks.Lock(visitorID)
	defer unlock()

	c, err := cache.Load(ctx, h.carts, visitorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := c.AddLine(item, qty, toppingIDs, snap.ToppingPrices()); err != nil {
		setFlash(w, flashError, err.Error())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := h.carts.Set(ctx, visitorID, c); err != nil {
		h.fail(w, r, err)
		return
	}

	setFlash(w, flashSuccess, fmt.Sprintf("Added %d × %s", qty, item.Name))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /cart/lines/{key}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, (*cart.Cart).Increment)
}

// POST /cart/lines/{key}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, (*cart.Cart).Decrement)
}

func (h *CartHandler) mutateLine(w http.ResponseWriter, r *http.Request, op func(*cart.Cart, string) bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := chi.URLParam(r, "key")
	visitorID := getVisitorID(r.Context())
	unlock := h.locks.Lock(visitorID)
	defer unlock()

	c, err := cache.Load(ctx, h.carts, visitorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if op(c, key) {
		if err := h.carts.Set(ctx, visitorID, c); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /cart/clear
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	visitorID := getVisitorID(r.Context())
	unlock := h.locks.Lock(visitorID)
	defer unlock()

	if err := h.carts.Delete(ctx, visitorID); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *CartHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		h.log.Warn().Err(err).Str("request_id", getRequestID(r.Context())).Msg("cart storage timed out")
	} else {
		h.log.Error().Err(err).Str("request_id", getRequestID(r.Context())).Msg("cart storage failed")
	}
	setFlash(w, flashError, "Your cart could not be saved, please try again")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
